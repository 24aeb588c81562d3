package normalize

import (
	"testing"

	"companylens/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKey  string
		wantSlug string
	}{
		{"plain AG", "Deutsche Bahn AG", "deutsche bahn", "deutsche-bahn"},
		{"umlauts and ampersand", "Müller & Schön GmbH", "mueller schoen", "mueller-schoen"},
		{"eszett", "Großmann Bau GmbH", "grossmann bau", "grossmann-bau"},
		{"compound suffix", "Bosch Service GmbH & Co. KG", "bosch service", "bosch-service"},
		{"kgaa", "Muster KGaA", "muster", "muster"},
		{"trailing dot", "Acme GmbH.", "acme", "acme"},
		{"slash and quotes", `"Acme" Werke/Süd`, "acme werke sued", "acme-werke-sued"},
		{"other diacritics", "Société Générale SA", "societe generale", "societe-generale"},
		{"hyphen kept", "Rhein-Main Verkehr GmbH", "rhein-main verkehr", "rhein-main-verkehr"},
		{"word ending in suffix", "Vertrag Service", "vertrag service", "vertrag-service"},
		{"suffix only stays", "GmbH", "gmbh", "gmbh"},
		{"whitespace", "   ", "", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if got.NormalizedKey != tt.wantKey {
				t.Errorf("Normalize(%q).NormalizedKey = %q, want %q", tt.raw, got.NormalizedKey, tt.wantKey)
			}
			if got.SlugFragment != tt.wantSlug {
				t.Errorf("Normalize(%q).SlugFragment = %q, want %q", tt.raw, got.SlugFragment, tt.wantSlug)
			}
		})
	}
}

func TestNormalize_SuffixPunctuationStyles(t *testing.T) {
	variants := []string{
		"Acme GmbH",
		"Acme, GmbH",
		"Acme (GmbH)",
		"ACME gmbh  ",
		"Acme [GmbH]",
		"Acme\u00a0GmbH",
		"Acme\u2009GmbH\u00a0",
	}

	want := Normalize(variants[0]).NormalizedKey
	if want != "acme" {
		t.Fatalf("Normalize(%q) = %q, want %q", variants[0], want, "acme")
	}
	for _, v := range variants[1:] {
		if got := Normalize(v).NormalizedKey; got != want {
			t.Errorf("Normalize(%q).NormalizedKey = %q, want %q", v, got, want)
		}
	}
}

func TestDetectTokens(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Tokens
	}{
		{"Deutsche Bahn AG", models.Tokens{AG: true}},
		{"Muster KGaA", models.Tokens{KGaA: true}},
		{"Muster KG KGaA", models.Tokens{KGaA: true}},
		{"Bosch GmbH & Co. KG", models.Tokens{GmbH: true, KG: true}},
		{"SAP SE", models.Tokens{SE: true}},
		{"Agentur Seeberg", models.Tokens{}},
		{"", models.Tokens{}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := DetectTokens(tt.raw); got != tt.want {
				t.Errorf("DetectTokens(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	info := Analyze("Deutsche Bahn AG")
	if info.Raw != "Deutsche Bahn AG" {
		t.Errorf("Raw = %q", info.Raw)
	}
	if info.NormalizedKey != "deutsche bahn" || info.SlugFragment != "deutsche-bahn" {
		t.Errorf("Analyze() = %+v", info)
	}
	if !info.Tokens.AG {
		t.Error("Tokens.AG = false, want true")
	}
	if !info.Identified() {
		t.Error("Identified() = false, want true")
	}
	if blank := Analyze("  "); blank.Identified() {
		t.Error("Identified() = true for blank name")
	}
}
