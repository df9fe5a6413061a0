package app

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/lexgate/domain/plan"
	"github.com/artpar/lexgate/domain/usage"
	"github.com/artpar/lexgate/ports"
	"github.com/rs/zerolog"
)

// UsageService records and summarizes per-user usage.
type UsageService struct {
	store   ports.UsageStore
	clock   ports.Clock
	idGen   ports.IDGenerator
	pricing usage.PriceTable
	logger  zerolog.Logger
}

// UsageDeps contains dependencies for UsageService.
type UsageDeps struct {
	Store   ports.UsageStore
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Pricing usage.PriceTable // nil uses usage.DefaultPricing
	Logger  zerolog.Logger
}

// NewUsageService creates a new usage service.
func NewUsageService(deps UsageDeps) *UsageService {
	pricing := deps.Pricing
	if pricing == nil {
		pricing = usage.DefaultPricing
	}
	return &UsageService{
		store:   deps.Store,
		clock:   deps.Clock,
		idGen:   deps.IDGen,
		pricing: pricing,
		logger:  deps.Logger,
	}
}

// LogUsage appends a record. ID and Timestamp are filled when empty.
// Failures are logged and never returned: usage accounting must not fail a request.
func (s *UsageService) LogUsage(ctx context.Context, r usage.Record) {
	if r.ID == "" {
		r.ID = s.idGen.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.clock.Now()
	}
	if err := s.store.Append(ctx, r); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", r.UserID).
			Str("endpoint", r.Endpoint).
			Msg("failed to record usage")
	}
}

// GetUserUsage summarizes a user's usage over [start, end]. A zero end means
// now; a zero start means usage.DefaultWindow before end.
func (s *UsageService) GetUserUsage(ctx context.Context, userID string, start, end time.Time) (usage.Summary, error) {
	if end.IsZero() {
		end = s.clock.Now()
	}
	if start.IsZero() {
		start = end.Add(-usage.DefaultWindow)
	}
	if end.Before(start) {
		return usage.Summary{}, fmt.Errorf("usage period: end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	records, err := s.store.Query(ctx, userID, start, end)
	if err != nil {
		return usage.Summary{}, fmt.Errorf("query usage: %w", err)
	}
	summary := usage.Aggregate(records, s.pricing, start, end)
	summary.UserID = userID
	return summary, nil
}

// CheckUsageQuota compares today's token total with the plan's daily quota.
func (s *UsageService) CheckUsageQuota(ctx context.Context, userID string, limits plan.Limits) (usage.QuotaStatus, error) {
	now := s.clock.Now()
	start, end := usage.DayBounds(now)
	records, err := s.store.Query(ctx, userID, start, end)
	if err != nil {
		return usage.QuotaStatus{}, fmt.Errorf("query usage: %w", err)
	}
	return usage.CheckQuota(records, userID, limits.DailyTokenQuota, now), nil
}
