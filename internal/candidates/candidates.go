// Package candidates derives plausible external profile slugs for a company.
package candidates

import (
	"companylens/internal/models"
)

// Slug construction defaults.
const (
	Locale        = "de"
	FallbackSlug  = Locale + "/unknown"
	MaxCandidates = 4
)

// Generate returns the ordered slug guesses for a fragment: the bare form
// first, then one variant per detected legal-entity token in the fixed order
// kgaa, gmbh, ag, se, kg. KG is skipped when KGaA is present.
func Generate(slugFragment string, tokens models.Tokens) []string {
	if slugFragment == "" {
		return []string{FallbackSlug}
	}

	base := Locale + "/" + slugFragment
	ordered := []string{base}

	variants := []struct {
		on     bool
		suffix string
	}{
		{tokens.KGaA, "kgaa"},
		{tokens.GmbH, "gmbh"},
		{tokens.AG, "ag"},
		{tokens.SE, "se"},
		{tokens.KG && !tokens.KGaA, "kg"},
	}
	for _, v := range variants {
		if v.on {
			ordered = append(ordered, base+"-"+v.suffix)
		}
	}

	seen := make(map[string]struct{}, len(ordered))
	out := make([]string, 0, MaxCandidates)
	for _, c := range ordered {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}

// ForCompany generates candidates for an analyzed company name.
func ForCompany(info models.CompanyInfo) []string {
	return Generate(info.SlugFragment, info.Tokens)
}
