// internal/models/grant.go
package models

import "time"

// GrantStatus is the publication state of a grant listing.
type GrantStatus string

const (
	GrantStatusOpen     GrantStatus = "OPEN"
	GrantStatusClosed   GrantStatus = "CLOSED"
	GrantStatusUpcoming GrantStatus = "UPCOMING"
)

// MinGrantAmount is the lowest publishable grant listing amount.
const MinGrantAmount = 1000

// GrantListing is an independently managed published grant opportunity.
// It has its own CRUD lifecycle and never passes through the status
// transition engine.
type GrantListing struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Amount       float64           `json:"amount"`
	Deadline     *time.Time        `json:"deadline,omitempty"`
	Eligibility  map[string]string `json:"eligibility,omitempty"`
	Requirements []string          `json:"requirements,omitempty"`
	Status       GrantStatus       `json:"status"`
	Featured     bool              `json:"featured"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// ValidGrantStatus reports whether s is a known listing status.
func ValidGrantStatus(s GrantStatus) bool {
	switch s {
	case GrantStatusOpen, GrantStatusClosed, GrantStatusUpcoming:
		return true
	}
	return false
}
