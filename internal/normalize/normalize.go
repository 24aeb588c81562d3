// Package normalize turns raw company names into stable lookup keys and slug fragments.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"companylens/internal/models"
)

// Result holds the two derived forms of a company name.
type Result struct {
	NormalizedKey string
	SlugFragment  string
}

// legalSuffixes is ordered longest first so compound forms win over their parts.
// Each entry is a regexp fragment matched against the lowercased name.
var legalSuffixes = []string{
	`gmbh\s*&\s*co\.?\s*kgaa`,
	`gmbh\s*&\s*co\.?\s*ohg`,
	`gmbh\s*&\s*co\.?\s*kg`,
	`ag\s*&\s*co\.?\s*kgaa`,
	`ag\s*&\s*co\.?\s*kg`,
	`se\s*&\s*co\.?\s*kgaa`,
	`se\s*&\s*co\.?\s*kg`,
	`ug\s*\(haftungsbeschränkt\)`,
	`ug\s*&\s*co\.?\s*kg`,
	`co\.?\s*kg`,
	`kgaa`,
	`ggmbh`,
	`gmbh`,
	`mbh`,
	`ohg`,
	`gbr`,
	`e\.\s*v\.?`,
	`e\.\s*g\.?`,
	`ug`,
	`ag`,
	`se`,
	`kg`,
	`ltd\.?`,
	`inc\.?`,
	`llc`,
	`plc`,
	`b\.?\s*v\.?`,
	`n\.?\s*v\.?`,
	`s\.?\s*a\.?`,
}

// suffixPatterns require a separator (whitespace, comma or opening bracket)
// before the suffix, so "tag" never loses its "ag".
var suffixPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(legalSuffixes))
	for _, s := range legalSuffixes {
		out = append(out, regexp.MustCompile(`(?:[\s,]+[(\[]?|[(\[])\s*(?:`+s+`)\s*[)\]]?[\s.,;]*$`))
	}
	return out
}()

var transliterations = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
)

var punctuation = strings.NewReplacer(
	".", " ",
	",", " ",
	"&", " ",
	"(", " ",
	")", " ",
	"/", " ",
	"'", " ",
	`"`, " ",
	"’", " ",
	"‘", " ",
	"„", " ",
	"“", " ",
	"”", " ",
)

var repeatedHyphens = regexp.MustCompile(`-{2,}`)

// Normalize canonicalizes raw into a lookup key and a URL slug fragment.
// Blank input yields empty forms, which callers treat as "no company".
func Normalize(raw string) Result {
	// Fields also splits on non-breaking and other Unicode spaces.
	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if s == "" {
		return Result{}
	}

	s = StripLegalSuffixes(s)
	s = transliterate(s)
	s = punctuation.Replace(s)
	key := strings.Join(strings.Fields(s), " ")

	slug := strings.ReplaceAll(key, " ", "-")
	slug = repeatedHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	return Result{NormalizedKey: key, SlugFragment: slug}
}

// StripLegalSuffixes removes trailing legal-entity suffixes from a lowercased
// name, repeating while one still matches and a name remains.
func StripLegalSuffixes(s string) string {
	for {
		stripped := false
		for _, re := range suffixPatterns {
			loc := re.FindStringIndex(s)
			if loc == nil {
				continue
			}
			rest := strings.TrimSpace(s[:loc[0]])
			if rest == "" {
				continue
			}
			s = rest
			stripped = true
			break
		}
		if !stripped {
			return s
		}
	}
}

func transliterate(s string) string {
	s = transliterations.Replace(norm.NFC.String(s))
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		return s
	}
	return folded
}

var tokenPatterns = struct {
	gmbh, ag, se, kg, kgaa *regexp.Regexp
}{
	gmbh: regexp.MustCompile(`(?i)\bgmbh\b`),
	ag:   regexp.MustCompile(`(?i)\bag\b`),
	se:   regexp.MustCompile(`(?i)\bse\b`),
	kg:   regexp.MustCompile(`(?i)\bkg\b`),
	kgaa: regexp.MustCompile(`(?i)\bkgaa\b`),
}

// DetectTokens reports the legal-entity markers present in raw as whole words.
// A KGaA match suppresses a simultaneous KG match.
func DetectTokens(raw string) models.Tokens {
	t := models.Tokens{
		GmbH: tokenPatterns.gmbh.MatchString(raw),
		AG:   tokenPatterns.ag.MatchString(raw),
		SE:   tokenPatterns.se.MatchString(raw),
		KG:   tokenPatterns.kg.MatchString(raw),
		KGaA: tokenPatterns.kgaa.MatchString(raw),
	}
	if t.KGaA {
		t.KG = false
	}
	return t
}

// Analyze builds the full CompanyInfo for a raw name.
func Analyze(raw string) models.CompanyInfo {
	r := Normalize(raw)
	return models.CompanyInfo{
		Raw:           raw,
		NormalizedKey: r.NormalizedKey,
		SlugFragment:  r.SlugFragment,
		Tokens:        DetectTokens(raw),
	}
}
