package models

import (
	"time"

	"github.com/google/uuid"
)

// NormalizeResponse is returned by the normalization endpoint.
type NormalizeResponse struct {
	Company    CompanyInfo `json:"company"`
	Candidates []string    `json:"candidates"`
}

// PageResponse describes an open page context.
type PageResponse struct {
	ID           uuid.UUID         `json:"id"`
	URL          string            `json:"url,omitempty"`
	JobSite      bool              `json:"job_site"`
	BadgeEnabled bool              `json:"badge_enabled"`
	Identity     *ResolvedIdentity `json:"identity"`
	CreatedAt    time.Time         `json:"created_at"`
}

// MappingResponse pairs a mapping entry with its key.
type MappingResponse struct {
	Key   string        `json:"key"`
	Entry *MappingEntry `json:"entry"`
}

// PreviewResponse is returned when the badge is clicked.
type PreviewResponse struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// JobDescription is the job posting content of a page.
type JobDescription struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"` // Markdown
}

// DiagnosticsConfig toggles the embed diagnostics overlay.
type DiagnosticsConfig struct {
	Enabled bool   `json:"enabled"`
	Slug    string `json:"slug"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	OpenPages int    `json:"open_pages"`
}
