// Package evidence defines asset records and the sources that supply them.
//
// An AssetRecord carries the raw governance attributes discovered for one
// warehouse asset. Presence of a key in Attributes means the attribute was
// fetched for this evidence bundle; its value may still be empty, which means
// "we looked and found nothing". Absence of the key means the attribute was
// never available. Downstream signal mapping depends on that distinction.
package evidence

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Attribute identifies a raw governance attribute on an asset.
type Attribute string

const (
	AttrOwnerUsers      Attribute = "owner_users"
	AttrOwnerGroups     Attribute = "owner_groups"
	AttrAdminUsers      Attribute = "admin_users"
	AttrDescription     Attribute = "description"
	AttrUserDescription Attribute = "user_description"
	AttrReadmeGUID      Attribute = "readme_guid"
	AttrTermGUIDs       Attribute = "term_guids"
	AttrTags            Attribute = "tags"
	AttrClassifications Attribute = "classifications"
	AttrHasLineage      Attribute = "has_lineage"
	AttrUpstreamCount   Attribute = "upstream_count"
	AttrDownstreamCount Attribute = "downstream_count"
	AttrCertificate     Attribute = "certificate_status"
	AttrPolicyCount     Attribute = "policy_count"
	AttrPopularity      Attribute = "popularity_score"
	AttrQueryCount      Attribute = "query_count"
	AttrQueryUserCount  Attribute = "query_user_count"
	AttrSourceUpdatedAt Attribute = "source_updated_at"
	AttrUpdatedAt       Attribute = "updated_at"
	AttrMCMonitored     Attribute = "mc_is_monitored"
	AttrDQSodaStatus    Attribute = "dq_soda_status"
)

// Kind describes how an attribute's raw value is interpreted.
type Kind int

const (
	KindText Kind = iota
	KindList
	KindNumber
	KindFlag
	KindTime
)

var attributeKinds = map[Attribute]Kind{
	AttrOwnerUsers:      KindList,
	AttrOwnerGroups:     KindList,
	AttrAdminUsers:      KindList,
	AttrDescription:     KindText,
	AttrUserDescription: KindText,
	AttrReadmeGUID:      KindText,
	AttrTermGUIDs:       KindList,
	AttrTags:            KindList,
	AttrClassifications: KindList,
	AttrHasLineage:      KindFlag,
	AttrUpstreamCount:   KindNumber,
	AttrDownstreamCount: KindNumber,
	AttrCertificate:     KindText,
	AttrPolicyCount:     KindNumber,
	AttrPopularity:      KindNumber,
	AttrQueryCount:      KindNumber,
	AttrQueryUserCount:  KindNumber,
	AttrSourceUpdatedAt: KindTime,
	AttrUpdatedAt:       KindTime,
	AttrMCMonitored:     KindFlag,
	AttrDQSodaStatus:    KindText,
}

// Attributes returns every known attribute in a stable order.
func Attributes() []Attribute {
	return []Attribute{
		AttrOwnerUsers, AttrOwnerGroups, AttrAdminUsers,
		AttrDescription, AttrUserDescription, AttrReadmeGUID, AttrTermGUIDs,
		AttrTags, AttrClassifications,
		AttrHasLineage, AttrUpstreamCount, AttrDownstreamCount,
		AttrCertificate, AttrPolicyCount,
		AttrPopularity, AttrQueryCount, AttrQueryUserCount,
		AttrSourceUpdatedAt, AttrUpdatedAt, AttrMCMonitored, AttrDQSodaStatus,
	}
}

// KindOf returns the kind of a known attribute. Unknown attributes are text.
func KindOf(a Attribute) Kind {
	if k, ok := attributeKinds[a]; ok {
		return k
	}
	return KindText
}

// IsKnown reports whether a is a recognised attribute.
func IsKnown(a Attribute) bool {
	_, ok := attributeKinds[a]
	return ok
}

// AssetRecord is one discovered asset with its raw governance attributes.
type AssetRecord struct {
	GUID          string                    `json:"guid" yaml:"guid"`
	Name          string                    `json:"name" yaml:"name"`
	QualifiedName string                    `json:"qualified_name" yaml:"qualified_name"`
	TypeName      string                    `json:"type_name,omitempty" yaml:"type_name,omitempty"`
	ConnectorName string                    `json:"connector_name,omitempty" yaml:"connector_name,omitempty"`
	DomainGUIDs   []string                  `json:"domain_guids,omitempty" yaml:"domain_guids,omitempty"`
	Attributes    map[Attribute]interface{} `json:"attributes" yaml:"attributes"`
}

// ID returns the identifier used for the asset in signal maps and gaps.
// The GUID is preferred; the qualified name is the fallback.
func (a *AssetRecord) ID() string {
	if a.GUID != "" {
		return a.GUID
	}
	return a.QualifiedName
}

// DisplayName returns the most readable name available.
func (a *AssetRecord) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID()
}

// Fetched reports whether attr was fetched for this asset.
func (a *AssetRecord) Fetched(attr Attribute) bool {
	_, ok := a.Attributes[attr]
	return ok
}

// List returns a list attribute. fetched is false when it was never available.
func (a *AssetRecord) List(attr Attribute) (items []string, fetched bool) {
	raw, ok := a.Attributes[attr]
	if !ok {
		return nil, false
	}
	return toList(raw), true
}

// Text returns a text attribute with "none"-style placeholders folded to "".
func (a *AssetRecord) Text(attr Attribute) (text string, fetched bool) {
	raw, ok := a.Attributes[attr]
	if !ok {
		return "", false
	}
	return toText(raw), true
}

// Number returns a numeric attribute. A nil value reads as zero.
func (a *AssetRecord) Number(attr Attribute) (n float64, fetched bool) {
	raw, ok := a.Attributes[attr]
	if !ok {
		return 0, false
	}
	return toNumber(raw), true
}

// HasNumber reports whether a numeric attribute was fetched with a non-null value.
func (a *AssetRecord) HasNumber(attr Attribute) bool {
	raw, ok := a.Attributes[attr]
	if !ok || raw == nil {
		return false
	}
	if s, isStr := raw.(string); isStr && isEmptyText(s) {
		return false
	}
	return isFinite(rawNumber(raw))
}

// Flag returns a boolean attribute. A nil value reads as false.
func (a *AssetRecord) Flag(attr Attribute) (b bool, fetched bool) {
	raw, ok := a.Attributes[attr]
	if !ok {
		return false, false
	}
	return toFlag(raw), true
}

// Time returns a timestamp attribute. A nil or unparsable value is the zero time.
func (a *AssetRecord) Time(attr Attribute) (t time.Time, fetched bool) {
	raw, ok := a.Attributes[attr]
	if !ok {
		return time.Time{}, false
	}
	return toTime(raw), true
}

// Normalize returns a copy of the record with every known attribute coerced
// to its canonical Go type ([]string, string, float64, bool, time.Time) and
// unknown attribute keys dropped. Fetched-ness is preserved.
func (a AssetRecord) Normalize() AssetRecord {
	out := a
	out.Attributes = make(map[Attribute]interface{}, len(a.Attributes))
	for attr, raw := range a.Attributes {
		if !IsKnown(attr) {
			continue
		}
		out.Attributes[attr] = NormalizeValue(attr, raw)
	}
	return out
}

// NormalizeValue coerces raw into the canonical type for attr's kind.
// nil stays nil so that "fetched but empty" survives normalisation.
func NormalizeValue(attr Attribute, raw interface{}) interface{} {
	if raw == nil {
		return nil
	}
	switch KindOf(attr) {
	case KindList:
		return toList(raw)
	case KindNumber:
		if s, ok := raw.(string); ok && isEmptyText(s) {
			return nil
		}
		if !isFinite(rawNumber(raw)) {
			return nil
		}
		return toNumber(raw)
	case KindFlag:
		return toFlag(raw)
	case KindTime:
		t := toTime(raw)
		if t.IsZero() {
			return nil
		}
		return t
	default:
		return toText(raw)
	}
}

func isEmptyText(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "[]", "n/a":
		return true
	}
	return false
}

func toText(raw interface{}) string {
	var s string
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	if isEmptyText(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// ParseList coerces a raw list value: a slice, JSON array text or a comma
// separated string.
func ParseList(raw interface{}) []string {
	return toList(raw)
}

func toList(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return compactList(v)
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, toText(item))
		}
		return compactList(items)
	case []byte:
		return toList(string(v))
	case string:
		s := strings.TrimSpace(v)
		if isEmptyText(s) {
			return []string{}
		}
		// Warehouse array columns arrive as JSON text.
		if strings.HasPrefix(s, "[") {
			var items []interface{}
			if err := json.Unmarshal([]byte(s), &items); err == nil {
				return toList(items)
			}
		}
		return compactList(strings.Split(s, ","))
	default:
		return compactList([]string{fmt.Sprint(v)})
	}
}

func compactList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if t := toText(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// toNumber reads raw as a float. Unparsable and non-finite values read as
// zero so that "inf" or NaN never reach scoring or JSON output.
func toNumber(raw interface{}) float64 {
	f := rawNumber(raw)
	if !isFinite(f) {
		return 0
	}
	return f
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func rawNumber(raw interface{}) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		return rawNumber(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toFlag(raw interface{}) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case bool:
		return v
	case []byte:
		return toFlag(string(v))
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return toNumber(v) != 0
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case []byte:
		return toTime(string(v))
	case string:
		s := strings.TrimSpace(v)
		if isEmptyText(s) {
			return time.Time{}
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		// Epoch milliseconds, as exported by the metadata lakehouse.
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
		return time.Time{}
	case int, int64, float64:
		ms := int64(toNumber(v))
		if ms <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	default:
		return time.Time{}
	}
}
