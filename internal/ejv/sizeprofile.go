package ejv

import "github.com/sells-group/geoequity/internal/refdata"

// sizeRule is one entry in the ordered size-profile rule set.
type sizeRule struct {
	name  string
	match func(t *refdata.Tables, name string) (SizeProfile, bool)
}

// sizeRules are evaluated in order; the first match wins and local
// independent is the fallback. New chains are added to the tables, not here.
var sizeRules = []sizeRule{
	{name: "company_specific", match: matchCompany},
	{name: "major_chain", match: matchMajorChain},
	{name: "regional_chain", match: matchRegionalChain},
}

// ResolveSizeProfile returns exactly one size profile for a business name.
func ResolveSizeProfile(t *refdata.Tables, name string) SizeProfile {
	for _, rule := range sizeRules {
		if p, ok := rule.match(t, name); ok {
			p.MatchedBy = rule.name
			return p
		}
	}
	return SizeProfile{
		Type:        refdata.LocalIndependent,
		MatchedBy:   "default",
		Multipliers: t.SizeMultipliers(refdata.LocalIndependent),
	}
}

// matchCompany overlays a company row on the national chain profile, even for
// companies that also appear in the regional chain list.
func matchCompany(t *refdata.Tables, name string) (SizeProfile, bool) {
	c, ok := t.Company(name)
	if !ok {
		return SizeProfile{}, false
	}
	m := t.SizeMultipliers(refdata.NationalChain)
	m.Wage = c.Multipliers.Wage
	m.Equity = c.Multipliers.Equity
	m.Supplier = c.Multipliers.Procurement
	m.Environmental = c.Multipliers.Environmental
	return SizeProfile{
		Type:            refdata.NationalChain,
		CompanySpecific: true,
		Multipliers:     m,
		Company:         c,
	}, true
}

func matchMajorChain(t *refdata.Tables, name string) (SizeProfile, bool) {
	if !t.IsMajorChain(name) {
		return SizeProfile{}, false
	}
	return SizeProfile{
		Type:        refdata.NationalChain,
		Multipliers: t.SizeMultipliers(refdata.NationalChain),
	}, true
}

func matchRegionalChain(t *refdata.Tables, name string) (SizeProfile, bool) {
	if !t.IsRegionalChain(name) {
		return SizeProfile{}, false
	}
	return SizeProfile{
		Type:        refdata.RegionalChain,
		Multipliers: t.SizeMultipliers(refdata.RegionalChain),
	}, true
}
