// internal/models/query_types.go
package models

// SortDirection for list queries.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListFilter narrows admin application listings. Zero values mean "no
// constraint". Search is matched case-insensitively as a substring of
// firstName, lastName, email, city and fundingPurpose (OR semantics).
type ListFilter struct {
	Status      Status `json:"status,omitempty"`
	FundingType string `json:"fundingType,omitempty"`
	Search      string `json:"search,omitempty"`
}

// SortSpec names the sort field and direction for list queries.
type SortSpec struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// ListResult is one page of a filtered, globally sorted listing.
type ListResult struct {
	Items      []ApplicationRecord `json:"items"`
	TotalCount int                 `json:"totalCount"`
	PageCount  int                 `json:"pageCount"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
}

// StatusCounts holds per-status record counts across all collections.
type StatusCounts struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
	UnderReview int `json:"underReview"`
}

// FundingStats summarizes funding amounts of APPROVED records. AvgAmount
// is the combined-weighted average (combined sum over combined count).
type FundingStats struct {
	TotalApproved float64 `json:"totalApproved"`
	AvgAmount     float64 `json:"avgAmount"`
	MaxAmount     float64 `json:"maxAmount"`
}

// FundingTypeCount is one bucket of the funding-type distribution.
type FundingTypeCount struct {
	FundingType string `json:"fundingType"`
	Count       int    `json:"count"`
}

// DashboardSummary is the point-in-time admin dashboard payload.
type DashboardSummary struct {
	Counts                  StatusCounts        `json:"counts"`
	RecentApplications      []ApplicationRecord `json:"recentApplications"`
	FundingStats            FundingStats        `json:"fundingStats"`
	FundingTypeDistribution []FundingTypeCount  `json:"fundingTypeDistribution"`
}

// GrantListResult is one page of grant listings.
type GrantListResult struct {
	Grants     []GrantListing `json:"grants"`
	TotalCount int            `json:"totalCount"`
	PageCount  int            `json:"pageCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
}
