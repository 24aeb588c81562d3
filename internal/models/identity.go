package models

import (
	"time"

	"companylens/internal/dom"
)

// IdentitySource tells where a resolved slug came from.
type IdentitySource string

// Identity sources
const (
	SourceMap      IdentitySource = "map"
	SourceAuto     IdentitySource = "auto"
	SourceFallback IdentitySource = "fallback"
)

// Placement modes for the badge.
const (
	ModeInline   = "inline"
	ModeFloating = "floating"
)

// ResolvedIdentity is the resolver's view of the company on the current page.
// It is replaced, never mutated, when the page's company changes.
type ResolvedIdentity struct {
	Company    *CompanyInfo   `json:"company"`
	Slug       string         `json:"slug"`
	Candidates []string       `json:"candidates"`
	Source     IdentitySource `json:"source"`
	Mode       string         `json:"mode"`
	ResolvedAt time.Time      `json:"resolved_at"`

	// Anchor is the element the company name was read from.
	Anchor dom.Element `json:"-"`
}

// NormalizedKey returns the company key, or "" when no company is attached.
func (r *ResolvedIdentity) NormalizedKey() string {
	if r == nil || r.Company == nil {
		return ""
	}
	return r.Company.NormalizedKey
}
