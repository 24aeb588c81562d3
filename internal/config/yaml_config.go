package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Heuristics represents the structure of the heuristics.yaml file.
// Selector lists change per job board and are easier to maintain in YAML than env vars.
type Heuristics struct {
	// AnchorSelectors are tried in order; the first visible match is the anchor.
	AnchorSelectors []string `yaml:"anchor_selectors"`
	// MarkerWords identify a company section heading during the text scan.
	MarkerWords []string `yaml:"marker_words"`
	// NameAttributes are read from the anchor when its own text is unusable.
	NameAttributes []string `yaml:"name_attributes"`
	// NestedSelectors are evaluated against the anchor, its heading and its parent.
	NestedSelectors []string `yaml:"nested_selectors"`
	// OwnPrefix marks ids, classes and attributes of injected elements.
	OwnPrefix string `yaml:"own_prefix"`
	// JobSites lists host suffixes treated as job boards.
	JobSites []string `yaml:"job_sites"`
}

// DefaultHeuristics returns the built-in StepStone-oriented heuristics.
func DefaultHeuristics() *Heuristics {
	return &Heuristics{
		AnchorSelectors: []string{
			`[data-at="header-company-name"]`,
			`h1[class*="company"] + *`,
			`[class*="company-name"]`,
			`[class*="CompanyName"]`,
			`header [class*="job-header"]`,
			`[class*="JobHeader"]`,
			`article header`,
		},
		MarkerWords:    []string{"Unternehmen", "Company"},
		NameAttributes: []string{"aria-label", "title", "alt"},
		NestedSelectors: []string{
			`[data-at="metadata-company-name"]`,
			`[data-at="header-company-name"]`,
			`[class*="company-name"]`,
			`[class*="CompanyName"]`,
			`a[href*="/cmp/"]`,
			`a[href*="/companies/"]`,
			`span`,
			`a`,
		},
		OwnPrefix: "kununu-",
		JobSites:  []string{"stepstone.de", "indeed.com", "indeed.de"},
	}
}

// LoadHeuristics loads the YAML heuristics file at path.
// Returns the defaults without error if the file doesn't exist; empty lists in
// the file fall back to the defaults individually.
func LoadHeuristics(path string) (*Heuristics, error) {
	defaults := DefaultHeuristics()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Heuristics file is optional
			return defaults, nil
		}
		return nil, err
	}

	var h Heuristics
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, err
	}

	// Set defaults
	if len(h.AnchorSelectors) == 0 {
		h.AnchorSelectors = defaults.AnchorSelectors
	}
	if len(h.MarkerWords) == 0 {
		h.MarkerWords = defaults.MarkerWords
	}
	if len(h.NameAttributes) == 0 {
		h.NameAttributes = defaults.NameAttributes
	}
	if len(h.NestedSelectors) == 0 {
		h.NestedSelectors = defaults.NestedSelectors
	}
	if h.OwnPrefix == "" {
		h.OwnPrefix = defaults.OwnPrefix
	}
	if len(h.JobSites) == 0 {
		h.JobSites = defaults.JobSites
	}

	return &h, nil
}
