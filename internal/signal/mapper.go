package signal

import (
	"github.com/mdlh/mdq/internal/evidence"
)

// Map converts one asset's raw attributes into its signal profile.
//
// For each signal the attributes listed in its definition are consulted. Any
// fetched attribute carrying a meaningful value makes the signal Present. If
// at least one attribute was fetched and none carried a value the signal is
// Absent. If none was fetched the signal is Unknown.
func Map(asset evidence.AssetRecord) Profile {
	var p Profile
	for _, s := range All() {
		p[s] = evaluate(&asset, definitions[s].Attributes)
	}
	return p
}

// MapAll maps every asset, keyed by asset id.
func MapAll(assets []evidence.AssetRecord) map[string]Profile {
	out := make(map[string]Profile, len(assets))
	for _, a := range assets {
		out[a.ID()] = Map(a)
	}
	return out
}

func evaluate(asset *evidence.AssetRecord, attrs []evidence.Attribute) Value {
	fetchedAny := false
	for _, attr := range attrs {
		present, fetched := attributePresent(asset, attr)
		if !fetched {
			continue
		}
		fetchedAny = true
		if present {
			return Present
		}
	}
	if fetchedAny {
		return Absent
	}
	return Unknown
}

// attributePresent reports whether attr carries a non-empty, non-default value.
func attributePresent(asset *evidence.AssetRecord, attr evidence.Attribute) (present, fetched bool) {
	switch evidence.KindOf(attr) {
	case evidence.KindList:
		items, ok := asset.List(attr)
		return len(items) > 0, ok
	case evidence.KindNumber:
		n, ok := asset.Number(attr)
		return n > 0, ok
	case evidence.KindFlag:
		b, ok := asset.Flag(attr)
		return b, ok
	case evidence.KindTime:
		t, ok := asset.Time(attr)
		return !t.IsZero(), ok
	default:
		s, ok := asset.Text(attr)
		return s != "", ok
	}
}
