// internal/models/application.go
package models

import "time"

// Status is the current stage of an application's review lifecycle.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusUnderReview Status = "UNDER_REVIEW"
)

// Source identifies which underlying collection a record came from. The
// two collections carry different schemas; records are normalized into
// ApplicationRecord at the store boundary.
type Source string

const (
	SourceGeneric Source = "generic"
	SourceGrant   Source = "grant"
)

// ApplicationRecord is the canonical in-memory shape of a submitted
// funding application, regardless of source collection.
type ApplicationRecord struct {
	ID             string         `json:"id"`
	Source         Source         `json:"source"`
	PersonalInfo   PersonalInfo   `json:"personalInfo"`
	EmploymentInfo EmploymentInfo `json:"employmentInfo"`
	AddressInfo    AddressInfo    `json:"addressInfo"`
	FundingInfo    FundingInfo    `json:"fundingInfo"`
	Documents      Documents      `json:"documents"`
	Status         Status         `json:"status"`
	StatusHistory  []StatusChange `json:"statusHistory"`
	Notes          string         `json:"notes,omitempty"`
	SubmittedBy    string         `json:"submittedBy,omitempty"` // empty for anonymous submissions
	AgreeToComms   bool           `json:"agreeToCommunication"`
	TermsAccepted  bool           `json:"termsAccepted"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type PersonalInfo struct {
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	SSN         string    `json:"ssn,omitempty"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Gender      string    `json:"gender,omitempty"`
	Ethnicity   string    `json:"ethnicity,omitempty"`
}

type EmploymentInfo struct {
	EmploymentStatus  string `json:"employmentStatus,omitempty"`
	IncomeLevel       string `json:"incomeLevel,omitempty"`
	EducationLevel    string `json:"educationLevel,omitempty"`
	CitizenshipStatus string `json:"citizenshipStatus,omitempty"`
}

type AddressInfo struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
}

type FundingInfo struct {
	FundingType    string  `json:"fundingType"`
	FundingAmount  float64 `json:"fundingAmount"`
	FundingPurpose string  `json:"fundingPurpose"`
	Timeframe      string  `json:"timeframe,omitempty"`
}

type Documents struct {
	IDCardFront string `json:"idCardFront"`
	IDCardBack  string `json:"idCardBack"`
}

// StatusChange is one entry in the append-only audit trail. Insertion
// order equals chronological order; entries are never mutated.
type StatusChange struct {
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
}

// CurrentHistoryStatus returns the status of the last history entry, or
// empty when history has not started yet.
func (a *ApplicationRecord) CurrentHistoryStatus() Status {
	if len(a.StatusHistory) == 0 {
		return ""
	}
	return a.StatusHistory[len(a.StatusHistory)-1].Status
}
