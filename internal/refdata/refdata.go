// Package refdata holds the immutable reference tables used by EJV scoring:
// wage bands, company disclosures, chain lists, size profiles, industry codes,
// baselines, and participation pathway weights.
package refdata

import (
	_ "embed"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var embeddedTables []byte

// DefaultType is the fallback bucket for unknown industries.
const DefaultType = "default"

// Size profile keys.
const (
	NationalChain    = "national_chain"
	RegionalChain    = "regional_chain"
	LocalIndependent = "local_independent"
)

// WageBand is the expected hourly wage range for an industry.
type WageBand struct {
	Min          float64 `yaml:"min" json:"min"`
	Max          float64 `yaml:"max" json:"max"`
	AvgEmployees int     `yaml:"avg_employees" json:"avg_employees"`
}

// Midpoint returns the center of the band.
func (b WageBand) Midpoint() float64 {
	return (b.Min + b.Max) / 2
}

// CompanyMultipliers are the per-company overrides applied to size profiles.
type CompanyMultipliers struct {
	Wage          float64 `yaml:"wage" json:"wage"`
	Equity        float64 `yaml:"equity" json:"equity"`
	Procurement   float64 `yaml:"procurement" json:"procurement"`
	Environmental float64 `yaml:"environmental" json:"environmental"`
}

// Company is a company-specific disclosure row.
type Company struct {
	Key                     string             `yaml:"key" json:"key"`
	Category                string             `yaml:"category" json:"category"`
	AvgHourlyWage           float64            `yaml:"avg_hourly_wage" json:"avg_hourly_wage"`
	LocalProcurementPct     float64            `yaml:"local_procurement_pct" json:"local_procurement_pct"`
	RenewableEnergyPct      float64            `yaml:"renewable_energy_pct" json:"renewable_energy_pct"`
	RecyclingPct            float64            `yaml:"recycling_pct" json:"recycling_pct"`
	EquityScore             float64            `yaml:"equity_score" json:"equity_score"`
	AffordabilityMultiplier float64            `yaml:"affordability_multiplier" json:"affordability_multiplier"`
	Multipliers             CompanyMultipliers `yaml:"multipliers" json:"multipliers"`
	DataSources             []string           `yaml:"data_sources" json:"data_sources"`
}

// SizeMultipliers adjust dimension inputs by business size.
type SizeMultipliers struct {
	Wage           float64 `yaml:"wage" json:"wage"`
	Equity         float64 `yaml:"equity" json:"equity"`
	Supplier       float64 `yaml:"supplier" json:"supplier"`
	Environmental  float64 `yaml:"environmental" json:"environmental"`
	LocalHire      float64 `yaml:"local_hire" json:"local_hire"`
	CommunitySpend float64 `yaml:"community_spend" json:"community_spend"`
}

// Industry maps an industry type to its occupation and NAICS codes.
type Industry struct {
	Type           string   `yaml:"type" json:"type"`
	OccupationCode string   `yaml:"occupation_code" json:"occupation_code"`
	IndustryCode   string   `yaml:"industry_code" json:"industry_code"`
	Name           string   `yaml:"name" json:"name"`
	Keywords       []string `yaml:"keywords" json:"-"`
}

// Baseline holds industry defaults used when no company data exists.
type Baseline struct {
	EquityPct           float64 `yaml:"equity_pct"`
	ProcurementPct      float64 `yaml:"procurement_pct"`
	RenewablePct        float64 `yaml:"renewable_pct"`
	RecyclingPct        float64 `yaml:"recycling_pct"`
	StoreTypeMultiplier float64 `yaml:"store_type_multiplier"`
}

// Pathway is a recognized civic participation pathway.
type Pathway struct {
	Type        string  `yaml:"-" json:"type"`
	Weight      float64 `yaml:"weight" json:"weight"`
	Unit        string  `yaml:"unit" json:"unit"`
	DisplayName string  `yaml:"display_name" json:"display_name"`
}

// Tables is the full set of reference tables. It is never mutated after Load.
type Tables struct {
	Version          string                     `yaml:"version"`
	WageStandards    map[string]WageBand        `yaml:"wage_standards"`
	Industries       []Industry                 `yaml:"industries"`
	TypicalEmployees map[string]int             `yaml:"typical_employees"`
	Baselines        map[string]Baseline        `yaml:"baselines"`
	SizeProfiles     map[string]SizeMultipliers `yaml:"size_profiles"`
	Companies        []Company                  `yaml:"companies"`
	MajorChains      []string                   `yaml:"major_chains"`
	RegionalChains   []string                   `yaml:"regional_chains"`
	Pathways         map[string]Pathway         `yaml:"participation_pathways"`

	industryByType map[string]Industry
}

// Load decodes and validates reference tables from YAML.
func Load(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "refdata: parse tables")
	}
	if err := t.validate(); err != nil {
		return nil, err
	}

	t.industryByType = make(map[string]Industry, len(t.Industries))
	for _, ind := range t.Industries {
		t.industryByType[ind.Type] = ind
	}
	for key, p := range t.Pathways {
		p.Type = key
		t.Pathways[key] = p
	}
	for i := range t.Companies {
		t.Companies[i].Key = NormalizeName(t.Companies[i].Key)
	}
	for i := range t.MajorChains {
		t.MajorChains[i] = NormalizeName(t.MajorChains[i])
	}
	for i := range t.RegionalChains {
		t.RegionalChains[i] = NormalizeName(t.RegionalChains[i])
	}
	return &t, nil
}

func (t *Tables) validate() error {
	if _, ok := t.WageStandards[DefaultType]; !ok {
		return eris.New("refdata: wage_standards missing default bucket")
	}
	if _, ok := t.Baselines[DefaultType]; !ok {
		return eris.New("refdata: baselines missing default bucket")
	}
	hasDefault := false
	for _, ind := range t.Industries {
		if ind.Type == "" {
			return eris.New("refdata: industry entry without type")
		}
		if ind.Type == DefaultType {
			hasDefault = true
		}
	}
	if !hasDefault {
		return eris.New("refdata: industries missing default bucket")
	}
	for _, key := range []string{NationalChain, RegionalChain, LocalIndependent} {
		if _, ok := t.SizeProfiles[key]; !ok {
			return eris.Errorf("refdata: size_profiles missing %q", key)
		}
	}
	for key, p := range t.Pathways {
		if p.Weight < 0 {
			return eris.Errorf("refdata: pathway %q has negative weight", key)
		}
	}
	return nil
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the tables embedded in the binary. It panics if the
// embedded YAML is malformed, which is a build defect.
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Load(embeddedTables)
		if err != nil {
			panic(err)
		}
		defaultTables = t
	})
	return defaultTables
}

// WageBand returns the band for an industry type, falling back to default.
func (t *Tables) WageBand(industryType string) WageBand {
	if b, ok := t.WageStandards[industryType]; ok {
		return b
	}
	return t.WageStandards[DefaultType]
}

// Baseline returns the baseline for an industry type, falling back to default.
func (t *Tables) Baseline(industryType string) Baseline {
	if b, ok := t.Baselines[industryType]; ok {
		return b
	}
	return t.Baselines[DefaultType]
}

// Industry returns the classification for an industry type, falling back to default.
func (t *Tables) Industry(industryType string) Industry {
	if ind, ok := t.industryByType[industryType]; ok {
		return ind
	}
	return t.industryByType[DefaultType]
}

// HasIndustry reports whether the industry type is known.
func (t *Tables) HasIndustry(industryType string) bool {
	_, ok := t.industryByType[industryType]
	return ok
}

// IndustryForText scans industries in table order and returns the first whose
// type or keywords appear in the normalized text.
func (t *Tables) IndustryForText(text string) (Industry, bool) {
	text = NormalizeName(text)
	if text == "" {
		return Industry{}, false
	}
	for _, ind := range t.Industries {
		if ind.Type == DefaultType {
			continue
		}
		if strings.Contains(text, ind.Type) {
			return ind, true
		}
		for _, kw := range ind.Keywords {
			if strings.Contains(text, kw) {
				return ind, true
			}
		}
	}
	return Industry{}, false
}

// TypicalEmployeeCount returns the reference headcount for a NAICS code.
func (t *Tables) TypicalEmployeeCount(industryCode string) (int, bool) {
	n, ok := t.TypicalEmployees[industryCode]
	return n, ok
}

// SizeMultipliers returns the multipliers for a size profile key.
func (t *Tables) SizeMultipliers(profile string) SizeMultipliers {
	if m, ok := t.SizeProfiles[profile]; ok {
		return m
	}
	return t.SizeProfiles[LocalIndependent]
}

// Company resolves a business name to a company row. Matching tries the
// exact key, then a key contained in the name. When stripping retail suffixes
// and store numbers changes the name, the cleaned name is tried again and may
// also match as a fragment of a key ("Panera #12" -> panera bread). The first
// table row that matches wins.
func (t *Tables) Company(name string) (*Company, bool) {
	n := NormalizeName(name)
	if n == "" {
		return nil, false
	}
	for i := range t.Companies {
		if t.Companies[i].Key == n {
			return &t.Companies[i], true
		}
	}
	if c := t.companyInName(n, false); c != nil {
		return c, true
	}
	if cleaned := CleanRetailSuffixes(n); cleaned != n {
		if c := t.companyInName(cleaned, true); c != nil {
			return c, true
		}
	}
	return nil, false
}

// minReverseMatch keeps short fragments like "a" from matching every key.
const minReverseMatch = 4

// companyInName returns the first company whose key appears in n. With
// reverse set, a key that contains n also matches.
func (t *Tables) companyInName(n string, reverse bool) *Company {
	if n == "" {
		return nil
	}
	for i := range t.Companies {
		key := t.Companies[i].Key
		if strings.Contains(n, key) {
			return &t.Companies[i]
		}
		if reverse && len(n) >= minReverseMatch && strings.Contains(key, n) {
			return &t.Companies[i]
		}
	}
	return nil
}

// IsMajorChain reports whether the name contains a major chain entry.
func (t *Tables) IsMajorChain(name string) bool {
	return containsAny(NormalizeName(name), t.MajorChains)
}

// IsRegionalChain reports whether the name contains a regional chain entry.
func (t *Tables) IsRegionalChain(name string) bool {
	return containsAny(NormalizeName(name), t.RegionalChains)
}

// Pathway returns the pathway definition for a type.
func (t *Tables) Pathway(pathwayType string) (Pathway, bool) {
	p, ok := t.Pathways[pathwayType]
	return p, ok
}

// PathwayList returns every pathway sorted by type.
func (t *Tables) PathwayList() []Pathway {
	out := make([]Pathway, 0, len(t.Pathways))
	for _, p := range t.Pathways {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// PathwayWeights returns the weight table keyed by pathway type.
func (t *Tables) PathwayWeights() map[string]float64 {
	out := make(map[string]float64, len(t.Pathways))
	for k, p := range t.Pathways {
		out[k] = p.Weight
	}
	return out
}

func containsAny(name string, entries []string) bool {
	if name == "" {
		return false
	}
	for _, e := range entries {
		if e != "" && strings.Contains(name, e) {
			return true
		}
	}
	return false
}
