package usage

import (
	"math"
	"time"
)

// DefaultWindow is the trailing period used when no range is given.
const DefaultWindow = 30 * 24 * time.Hour

// Filter returns the records for userID with Timestamp in [start, end].
// This is a PURE function.
func Filter(records []Record, userID string, start, end time.Time) []Record {
	var out []Record
	for _, r := range records {
		if r.UserID != userID {
			continue
		}
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Aggregate combines records into a summary with a cost estimate.
// This is a PURE function.
func Aggregate(records []Record, pricing PriceTable, periodStart, periodEnd time.Time) Summary {
	s := Summary{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	if len(records) == 0 {
		return s
	}

	var totalLatency int64
	var cost float64
	for _, r := range records {
		if s.UserID == "" {
			s.UserID = r.UserID
		}
		s.TotalRequests++
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		totalLatency += r.LatencyMs
		if r.Cached {
			s.CachedRequests++
		}
		if !r.Success {
			s.FailedRequests++
		}
		cost += pricing.Cost(r.Model, r.InputTokens, r.OutputTokens)
	}

	s.TotalTokens = s.InputTokens + s.OutputTokens
	s.AvgLatencyMs = totalLatency / int64(s.TotalRequests)
	s.EstimatedCost = RoundCents(cost)
	return s
}

// RoundCents rounds to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// DayBounds returns the start and end of t's calendar day in t's location.
// This is a PURE function.
func DayBounds(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return
}

// CheckQuota sums today's tokens for userID and compares them with the daily
// limit. A limit of zero or less is unlimited.
// This is a PURE function.
func CheckQuota(records []Record, userID string, limit int64, now time.Time) QuotaStatus {
	start, end := DayBounds(now)
	var used int64
	for _, r := range Filter(records, userID, start, end) {
		used += int64(r.TotalTokens())
	}
	return QuotaStatus{
		WithinQuota:  limit <= 0 || used < limit,
		CurrentUsage: used,
		Limit:        limit,
	}
}
