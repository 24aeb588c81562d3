package models

// Company name length band accepted by the extraction strategies.
const (
	MinCompanyNameLen = 3
	MaxCompanyNameLen = 149
)

// Tokens records which legal-entity markers were found in a raw company name.
type Tokens struct {
	GmbH bool `json:"gmbh"`
	AG   bool `json:"ag"`
	SE   bool `json:"se"`
	KG   bool `json:"kg"`
	KGaA bool `json:"kgaa"`
}

// Any reports whether at least one marker was detected.
func (t Tokens) Any() bool {
	return t.GmbH || t.AG || t.SE || t.KG || t.KGaA
}

// CompanyInfo is an extracted company name and its derived lookup forms.
type CompanyInfo struct {
	Raw           string `json:"raw"`
	NormalizedKey string `json:"normalized_key"`
	SlugFragment  string `json:"slug_fragment"`
	Tokens        Tokens `json:"tokens"`
}

// Identified reports whether the name produced a usable lookup key.
// An empty key never addresses a mapping entry.
func (c *CompanyInfo) Identified() bool {
	return c != nil && c.NormalizedKey != ""
}
