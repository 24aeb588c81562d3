package models

import "time"

// MappingEntry is a persisted normalized-name to slug association.
type MappingEntry struct {
	Slug      string    `json:"slug"`
	Confirmed bool      `json:"confirmed"` // true only when a person saved it
	UpdatedAt time.Time `json:"updatedAt"`
}
