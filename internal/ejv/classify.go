package ejv

import (
	"strings"

	"github.com/sells-group/geoequity/internal/refdata"
)

// ClassifyIndustry resolves the industry for a business. Resolution order:
// company category, explicit industry hint, name keywords, id substring,
// then the default bucket.
func ClassifyIndustry(t *refdata.Tables, p BusinessProfile) IndustryClassification {
	if c, ok := t.Company(p.Name); ok && t.HasIndustry(c.Category) {
		return classification(t.Industry(c.Category), ClassifiedByCompany)
	}

	if hint := refdata.NormalizeName(p.IndustryHint); hint != "" {
		if t.HasIndustry(hint) {
			return classification(t.Industry(hint), ClassifiedByHint)
		}
		if ind, ok := t.IndustryForText(strings.ReplaceAll(hint, "=", " ")); ok {
			return classification(ind, ClassifiedByHint)
		}
	}

	if ind, ok := t.IndustryForText(p.Name); ok {
		return classification(ind, ClassifiedByName)
	}
	if ind, ok := t.IndustryForText(p.ID); ok {
		return classification(ind, ClassifiedByID)
	}
	return classification(t.Industry(refdata.DefaultType), ClassifiedByDefault)
}

func classification(ind refdata.Industry, source string) IndustryClassification {
	return IndustryClassification{
		Type:           ind.Type,
		OccupationCode: ind.OccupationCode,
		IndustryCode:   ind.IndustryCode,
		Name:           ind.Name,
		Source:         source,
	}
}
