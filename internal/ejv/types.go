package ejv

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/refdata"
)

// ErrInvalidInput is returned when a scoring request lacks required fields.
var ErrInvalidInput = eris.New("ejv: invalid input")

// CensusTract identifies a census tract by FIPS codes.
type CensusTract struct {
	State  string `json:"state"`
	County string `json:"county"`
	Tract  string `json:"tract"`
}

// BusinessProfile identifies the business being scored.
type BusinessProfile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	Location     string       `json:"location,omitempty"`
	PostalCode   string       `json:"postal_code,omitempty"`
	Tract        *CensusTract `json:"tract,omitempty"`
	IndustryHint string       `json:"industry,omitempty"`
}

// Classification sources, in resolution order.
const (
	ClassifiedByCompany = "company"
	ClassifiedByHint    = "hint"
	ClassifiedByName    = "name"
	ClassifiedByID      = "id"
	ClassifiedByDefault = "default"
)

// IndustryClassification is the resolved industry for a business.
type IndustryClassification struct {
	Type           string `json:"type"`
	OccupationCode string `json:"occupation_code"`
	IndustryCode   string `json:"industry_code"`
	Name           string `json:"name"`
	Source         string `json:"source"`
}

// SizeProfile classifies a business by scale and carries its multipliers.
type SizeProfile struct {
	Type            string                  `json:"type"`
	CompanySpecific bool                    `json:"company_specific"`
	MatchedBy       string                  `json:"matched_by"`
	Multipliers     refdata.SizeMultipliers `json:"multipliers"`
	Company         *refdata.Company        `json:"-"`
}

// IsLocalIndependent reports whether the profile is the local default.
func (s SizeProfile) IsLocalIndependent() bool {
	return s.Type == refdata.LocalIndependent
}

// PayrollEstimate is the derived staffing picture for one store.
type PayrollEstimate struct {
	AvgHourlyWage       float64 `json:"avg_hourly_wage"`
	WageSource          string  `json:"wage_source"`
	ActiveEmployees     int     `json:"active_employees"`
	EmployeeSource      string  `json:"employee_source"`
	DailyPayroll        float64 `json:"daily_payroll"`
	LocalHireRate       float64 `json:"local_hire_rate"`
	DailyCommunitySpend float64 `json:"daily_community_spend"`
}

// DimensionScores holds the five normalized dimension scores.
type DimensionScores struct {
	FairWage      float64 `json:"fair_wage"`
	PayEquity     float64 `json:"pay_equity"`
	LocalImpact   float64 `json:"local_impact"`
	Affordability float64 `json:"affordability"`
	Environmental float64 `json:"environmental"`
}

// ValueSplit divides a nominal transaction into retained and leaked value.
type ValueSplit struct {
	Nominal  float64 `json:"nominal"`
	Retained float64 `json:"retained"`
	Leaked   float64 `json:"leaked"`
}

// Result is the outcome of a simple scoring request.
type Result struct {
	BusinessID    string                        `json:"business_id"`
	Name          string                        `json:"name,omitempty"`
	PostalCode    string                        `json:"postal_code,omitempty"`
	Score         float64                       `json:"score"`
	Percentage    float64                       `json:"percentage"`
	Dimensions    DimensionScores               `json:"dimensions"`
	Value         ValueSplit                    `json:"value"`
	Payroll       PayrollEstimate               `json:"payroll"`
	SizeProfile   SizeProfile                   `json:"size_profile"`
	Industry      IndustryClassification        `json:"industry"`
	Indicators    indicators.EconomicIndicators `json:"indicators"`
	MedianIncome  float64                       `json:"median_income"`
	DataSources   []string                      `json:"data_sources"`
	TablesVersion string                        `json:"tables_version"`
}

// ParticipationRecord is one pathway's civic engagement input.
type ParticipationRecord struct {
	Hours          float64 `json:"hours"`
	Verified       bool    `json:"verified"`
	DurationMonths float64 `json:"duration_months"`
}

// ParticipationRequest scores a business and amplifies the result for a
// purchase by the caller's participation.
type ParticipationRequest struct {
	Business       BusinessProfile                `json:"business"`
	Records        map[string]ParticipationRecord `json:"participation"`
	// PurchaseAmount is nil when the caller gave none; the nominal
	// transaction is used then. An explicit zero is a zero purchase.
	PurchaseAmount *float64 `json:"purchase_amount,omitempty"`
}

// PathwayContribution is one recognized pathway's share of the PAF.
type PathwayContribution struct {
	Pathway      string  `json:"pathway"`
	Weight       float64 `json:"weight"`
	Intensity    float64 `json:"intensity"`
	Verification float64 `json:"verification"`
	Duration     float64 `json:"duration"`
	Contribution float64 `json:"contribution"`
}

// AmplifiedResult is the outcome of a participation scoring request.
type AmplifiedResult struct {
	*Result
	PAF                 float64               `json:"paf"`
	Contributions       []PathwayContribution `json:"contributions"`
	IgnoredPathways     []string              `json:"ignored_pathways,omitempty"`
	PurchaseAmount      float64               `json:"purchase_amount"`
	RetainedForPurchase float64               `json:"retained_for_purchase"`
	AmplifiedValue      float64               `json:"amplified_value"`
	AmplificationDelta  float64               `json:"amplification_delta"`
}
