// internal/admin/aggregator.go

// Package admin builds the administrative read views: the dashboard
// summary and the filtered, globally paginated application listing.
// Both span the two application collections and merge in memory.
package admin

import (
	"context"
	"sort"

	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/metrics"
	"grant-backend/internal/models"
	"grant-backend/internal/store"
)

// StatsStore provides per-collection aggregates. The aggregator combines
// them; combining must happen on raw sums and counts so that derived
// values like the average stay exact.
type StatsStore interface {
	Sources() []models.Source
	CountByStatus(ctx context.Context, source models.Source) (map[models.Status]int, error)
	ApprovedFundingSummary(ctx context.Context, source models.Source) (store.FundingSummary, error)
	FundingTypeCounts(ctx context.Context, source models.Source) (map[string]int, error)
	RecentBySource(ctx context.Context, source models.Source, n int) ([]models.ApplicationRecord, error)
}

// Aggregator computes the point-in-time dashboard summary.
type Aggregator struct {
	store       StatsStore
	recentLimit int
	logger      logger.Logger
}

func NewAggregator(statsStore StatsStore, recentLimit int, log logger.Logger) *Aggregator {
	if recentLimit <= 0 {
		recentLimit = 5
	}
	return &Aggregator{
		store:       statsStore,
		recentLimit: recentLimit,
		logger:      log.WithFields(map[string]interface{}{"component": "admin-aggregator"}),
	}
}

// ComputeDashboard aggregates counts, recent records, funding statistics
// and the funding-type distribution across all collections. Any underlying
// failure yields an aggregation error and no partial dashboard.
func (a *Aggregator) ComputeDashboard(ctx context.Context) (*models.DashboardSummary, error) {
	summary, err := a.compute(ctx)
	if err != nil {
		metrics.DashboardComputations.WithLabelValues("failure").Inc()
		a.logger.WithError(err).Error("Dashboard aggregation failed", nil)
		return nil, apperrors.NewAggregationFailedError(err)
	}
	metrics.DashboardComputations.WithLabelValues("success").Inc()
	return summary, nil
}

func (a *Aggregator) compute(ctx context.Context) (*models.DashboardSummary, error) {
	var summary models.DashboardSummary
	var fundingTotal, fundingMax float64
	var approvedCount int
	typeCounts := make(map[string]int)
	var recent []models.ApplicationRecord

	for _, source := range a.store.Sources() {
		counts, err := a.store.CountByStatus(ctx, source)
		if err != nil {
			return nil, err
		}
		for status, count := range counts {
			summary.Counts.Total += count
			switch status {
			case models.StatusPending:
				summary.Counts.Pending += count
			case models.StatusApproved:
				summary.Counts.Approved += count
			case models.StatusRejected:
				summary.Counts.Rejected += count
			case models.StatusUnderReview:
				summary.Counts.UnderReview += count
			}
		}

		funding, err := a.store.ApprovedFundingSummary(ctx, source)
		if err != nil {
			return nil, err
		}
		fundingTotal += funding.TotalApproved
		approvedCount += funding.ApprovedCount
		if funding.MaxAmount > fundingMax {
			fundingMax = funding.MaxAmount
		}

		types, err := a.store.FundingTypeCounts(ctx, source)
		if err != nil {
			return nil, err
		}
		for fundingType, count := range types {
			typeCounts[fundingType] += count
		}

		records, err := a.store.RecentBySource(ctx, source, a.recentLimit)
		if err != nil {
			return nil, err
		}
		recent = append(recent, records...)
	}

	summary.FundingStats.TotalApproved = fundingTotal
	summary.FundingStats.MaxAmount = fundingMax
	if approvedCount > 0 {
		// Weighted by record count across collections, not an average
		// of per-collection averages.
		summary.FundingStats.AvgAmount = fundingTotal / float64(approvedCount)
	}

	summary.FundingTypeDistribution = sortedDistribution(typeCounts)

	sortRecent(recent)
	if len(recent) > a.recentLimit {
		recent = recent[:a.recentLimit]
	}
	summary.RecentApplications = recent
	if summary.RecentApplications == nil {
		summary.RecentApplications = []models.ApplicationRecord{}
	}

	return &summary, nil
}

// sortedDistribution orders buckets by descending count, ties broken by
// funding type ascending for stable output.
func sortedDistribution(counts map[string]int) []models.FundingTypeCount {
	distribution := make([]models.FundingTypeCount, 0, len(counts))
	for fundingType, count := range counts {
		distribution = append(distribution, models.FundingTypeCount{
			FundingType: fundingType,
			Count:       count,
		})
	}
	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].Count != distribution[j].Count {
			return distribution[i].Count > distribution[j].Count
		}
		return distribution[i].FundingType < distribution[j].FundingType
	})
	return distribution
}

// sortRecent orders records newest first with id ascending as tiebreak.
func sortRecent(records []models.ApplicationRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
