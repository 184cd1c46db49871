package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdlh/mdq/internal/evidence"
)

// Identity fields of an asset row.
const (
	fieldGUID          = "guid"
	fieldName          = "name"
	fieldQualifiedName = "qualified_name"
	fieldTypeName      = "type_name"
	fieldConnector     = "connector_name"
	fieldDomainGUIDs   = "domain_guids"
	fieldStatus        = "status"
)

// identityColumns lists candidate column names for each identity field,
// canonical name first.
var identityColumns = map[string][]string{
	fieldGUID:          {"GUID"},
	fieldName:          {"NAME", "ASSET_NAME"},
	fieldQualifiedName: {"QUALIFIED_NAME", "QUALIFIEDNAME", "ASSET_QUALIFIED_NAME"},
	fieldTypeName:      {"TYPE_NAME", "TYPENAME", "ASSET_TYPE"},
	fieldConnector:     {"CONNECTOR_NAME", "CONNECTORNAME"},
	fieldDomainGUIDs:   {"DOMAIN_GUIDS", "DOMAINGUIDS", "__DOMAINGUIDS"},
	fieldStatus:        {"STATUS"},
}

var identityOrder = []string{
	fieldGUID, fieldName, fieldQualifiedName, fieldTypeName,
	fieldConnector, fieldDomainGUIDs, fieldStatus,
}

// attributeColumns is the field catalog: candidate column names per
// evidence attribute, canonical name first.
var attributeColumns = map[evidence.Attribute][]string{
	evidence.AttrOwnerUsers:      {"OWNER_USERS", "OWNERUSERS"},
	evidence.AttrOwnerGroups:     {"OWNER_GROUPS", "OWNERGROUPS"},
	evidence.AttrAdminUsers:      {"ADMIN_USERS", "ADMINUSERS"},
	evidence.AttrDescription:     {"DESCRIPTION"},
	evidence.AttrUserDescription: {"USER_DESCRIPTION", "USERDESCRIPTION"},
	evidence.AttrReadmeGUID:      {"README_GUID", "READMEGUID", "README"},
	evidence.AttrTermGUIDs:       {"TERM_GUIDS", "TERMGUIDS", "MEANINGS", "ASSIGNEDTERMS"},
	evidence.AttrTags:            {"TAGS"},
	evidence.AttrClassifications: {"CLASSIFICATION_NAMES", "CLASSIFICATIONNAMES"},
	evidence.AttrHasLineage:      {"HAS_LINEAGE", "HASLINEAGE", "__HASLINEAGE"},
	evidence.AttrUpstreamCount:   {"UPSTREAM_COUNT", "UPSTREAMCOUNT"},
	evidence.AttrDownstreamCount: {"DOWNSTREAM_COUNT", "DOWNSTREAMCOUNT"},
	evidence.AttrCertificate:     {"CERTIFICATE_STATUS", "CERTIFICATESTATUS"},
	evidence.AttrPolicyCount:     {"ASSET_POLICIES_COUNT", "ASSETPOLICIESCOUNT"},
	evidence.AttrPopularity:      {"POPULARITY_SCORE", "POPULARITYSCORE"},
	evidence.AttrQueryCount:      {"QUERY_COUNT", "QUERYCOUNT"},
	evidence.AttrQueryUserCount:  {"QUERY_USER_COUNT", "QUERYUSERCOUNT"},
	evidence.AttrSourceUpdatedAt: {"SOURCE_UPDATED_AT", "SOURCEUPDATEDAT"},
	evidence.AttrUpdatedAt:       {"UPDATE_TIME", "UPDATETIME", "__MODIFICATIONTIMESTAMP"},
	evidence.AttrMCMonitored:     {"ASSET_MC_IS_MONITORED", "ASSETMCISMONITORED"},
	evidence.AttrDQSodaStatus:    {"ASSET_SODA_DQ_STATUS", "ASSETSODADQSTATUS"},
}

// CanonicalColumn returns the column Import writes an attribute to.
func CanonicalColumn(attr evidence.Attribute) string {
	if cols, ok := attributeColumns[attr]; ok {
		return cols[0]
	}
	return strings.ToUpper(string(attr))
}

// columnMap records which physical column serves each field.
type columnMap struct {
	identity   map[string]string
	attributes map[evidence.Attribute]string
}

// resolve picks the first candidate present in the discovered columns.
// Matching is case-insensitive; the physical spelling is kept for quoting.
func resolve(physical []string) columnMap {
	byUpper := make(map[string]string, len(physical))
	for _, c := range physical {
		byUpper[strings.ToUpper(c)] = c
	}
	pick := func(candidates []string) (string, bool) {
		for _, c := range candidates {
			if p, ok := byUpper[c]; ok {
				return p, true
			}
		}
		return "", false
	}

	m := columnMap{
		identity:   make(map[string]string),
		attributes: make(map[evidence.Attribute]string),
	}
	for _, field := range identityOrder {
		if p, ok := pick(identityColumns[field]); ok {
			m.identity[field] = p
		}
	}
	for _, attr := range evidence.Attributes() {
		if p, ok := pick(attributeColumns[attr]); ok {
			m.attributes[attr] = p
		}
	}
	return m
}

// columns discovers the physical columns of the asset table with a
// zero-row query.
func (s *Store) columns(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", s.dialect.quote(s.table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("discover columns of %s: %w", s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("discover columns of %s: %w", s.table, err)
	}
	return cols, nil
}

// Columns reports which evidence attributes the table can supply, keyed by
// attribute with the physical column as value.
func (s *Store) Columns(ctx context.Context) (map[evidence.Attribute]string, error) {
	cols, err := s.columns(ctx)
	if err != nil {
		return nil, err
	}
	return resolve(cols).attributes, nil
}
