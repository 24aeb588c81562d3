package candidates

import (
	"reflect"
	"testing"

	"companylens/internal/models"
	"companylens/internal/normalize"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		tokens   models.Tokens
		want     []string
	}{
		{
			name:     "no tokens",
			fragment: "acme",
			want:     []string{"de/acme"},
		},
		{
			name:     "ag",
			fragment: "deutsche-bahn",
			tokens:   models.Tokens{AG: true},
			want:     []string{"de/deutsche-bahn", "de/deutsche-bahn-ag"},
		},
		{
			name:     "kgaa suppresses kg",
			fragment: "muster",
			tokens:   models.Tokens{KGaA: true, KG: true},
			want:     []string{"de/muster", "de/muster-kgaa"},
		},
		{
			name:     "priority order and cap",
			fragment: "acme",
			tokens:   models.Tokens{GmbH: true, AG: true, SE: true, KG: true},
			want:     []string{"de/acme", "de/acme-gmbh", "de/acme-ag", "de/acme-se"},
		},
		{
			name:     "empty fragment",
			fragment: "",
			tokens:   models.Tokens{GmbH: true},
			want:     []string{FallbackSlug},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.fragment, tt.tokens)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Generate(%q, %+v) = %v, want %v", tt.fragment, tt.tokens, got, tt.want)
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	tokens := models.Tokens{GmbH: true, AG: true, SE: true, KG: true, KGaA: true}
	first := Generate("acme", tokens)

	for i := 0; i < 20; i++ {
		got := Generate("acme", tokens)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d = %v, want %v", i, got, first)
		}
	}

	if first[0] != "de/acme" {
		t.Errorf("first candidate = %q, want bare form", first[0])
	}
	if len(first) > MaxCandidates {
		t.Errorf("len = %d, want <= %d", len(first), MaxCandidates)
	}
	seen := map[string]bool{}
	for _, c := range first {
		if seen[c] {
			t.Errorf("duplicate candidate %q", c)
		}
		seen[c] = true
	}
}

func TestForCompany(t *testing.T) {
	got := ForCompany(normalize.Analyze("Deutsche Bahn AG"))
	want := []string{"de/deutsche-bahn", "de/deutsche-bahn-ag"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForCompany() = %v, want %v", got, want)
	}
}
