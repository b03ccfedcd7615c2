package refdata

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// retailSuffixes are trailing words stripped from store names before a
// second company lookup ("Walmart Supercenter" -> "walmart").
var retailSuffixes = []string{
	"supercenter", "marketplace", "supermarket", "grocery", "market",
	"store", "shop", "food", "center", "retail", "location", "branch",
	"#", "no.",
}

var (
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	storeNumberRe = regexp.MustCompile(`(\s*#|\s+no\.)\s*\d*\s*$`)
	trailingNumRe = regexp.MustCompile(`\s+\d+$`)
)

// NormalizeName case-folds a business name for table matching. It applies
// NFKC, maps typographic apostrophes to ASCII, and collapses whitespace.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = norm.NFKC.String(name)
	name = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'").Replace(name)
	name = cases.Fold().String(name)
	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// CleanRetailSuffixes removes store numbers and trailing retail words from
// an already normalized name.
func CleanRetailSuffixes(name string) string {
	name = storeNumberRe.ReplaceAllString(name, "")
	name = trailingNumRe.ReplaceAllString(name, "")
	for changed := true; changed; {
		changed = false
		for _, suffix := range retailSuffixes {
			if !strings.HasSuffix(name, " "+suffix) {
				continue
			}
			name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
			changed = true
		}
	}
	return strings.TrimSpace(name)
}
