package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/lexgate/adapters/clock"
	"github.com/artpar/lexgate/adapters/idgen"
	"github.com/artpar/lexgate/adapters/memory"
	"github.com/artpar/lexgate/app"
	"github.com/artpar/lexgate/domain/plan"
	"github.com/artpar/lexgate/domain/usage"
	"github.com/rs/zerolog"
)

func newTestUsageService(maxRecords int) (*app.UsageService, *memory.UsageStore, *clock.Fake) {
	clk := clock.NewFake(baseTime)
	store := memory.NewUsageStore(maxRecords)
	svc := app.NewUsageService(app.UsageDeps{
		Store:  store,
		Clock:  clk,
		IDGen:  idgen.NewSequential("u"),
		Logger: zerolog.Nop(),
	})
	return svc, store, clk
}

func TestUsageService_LogUsage_FillsDefaults(t *testing.T) {
	svc, store, _ := newTestUsageService(10)

	svc.LogUsage(context.Background(), usage.Record{UserID: "user-1", Endpoint: "chat", Success: true})

	records, _ := store.Query(context.Background(), "user-1", baseTime, baseTime)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].ID != "u1" {
		t.Errorf("id = %s, want u1", records[0].ID)
	}
	if !records[0].Timestamp.Equal(baseTime) {
		t.Errorf("timestamp = %v, want %v", records[0].Timestamp, baseTime)
	}
}

func TestUsageService_LogUsage_TrimsOldest(t *testing.T) {
	svc, store, clk := newTestUsageService(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.LogUsage(ctx, usage.Record{UserID: "user-1"})
		clk.Advance(time.Second)
	}
	if store.Len() != 3 {
		t.Fatalf("len = %d, want 3", store.Len())
	}
	kept, _ := store.Query(ctx, "user-1", baseTime, clk.Now())
	if id := kept[0].ID; id != "u3" {
		t.Errorf("oldest kept = %s, want u3", id)
	}
}

func TestUsageService_GetUserUsage(t *testing.T) {
	svc, _, clk := newTestUsageService(100)
	ctx := context.Background()

	// Outside the default 30-day window.
	clk.Set(baseTime.Add(-31 * 24 * time.Hour))
	svc.LogUsage(ctx, usage.Record{UserID: "user-1", InputTokens: 1000, Model: "claude-sonnet-4-20250514", Success: true})

	clk.Set(baseTime.Add(-time.Hour))
	svc.LogUsage(ctx, usage.Record{UserID: "user-1", InputTokens: 1_000_000, OutputTokens: 100_000, Model: "claude-sonnet-4-20250514", LatencyMs: 300, Success: true})
	svc.LogUsage(ctx, usage.Record{UserID: "user-1", Model: "claude-sonnet-4-20250514", LatencyMs: 100, ErrorCode: "API_ERROR"})
	svc.LogUsage(ctx, usage.Record{UserID: "user-2", InputTokens: 50, Success: true})
	clk.Set(baseTime)

	summary, err := svc.GetUserUsage(ctx, "user-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetUserUsage error: %v", err)
	}
	if summary.TotalRequests != 2 {
		t.Errorf("total requests = %d, want 2", summary.TotalRequests)
	}
	if summary.FailedRequests != 1 {
		t.Errorf("failed requests = %d, want 1", summary.FailedRequests)
	}
	if summary.AvgLatencyMs != 200 {
		t.Errorf("avg latency = %d, want 200", summary.AvgLatencyMs)
	}
	// 1M input at $3 + 100k output at $15/M.
	if summary.EstimatedCost != 4.5 {
		t.Errorf("cost = %v, want 4.5", summary.EstimatedCost)
	}
	if !summary.PeriodEnd.Equal(baseTime) || !summary.PeriodStart.Equal(baseTime.Add(-usage.DefaultWindow)) {
		t.Errorf("period = %v..%v, want trailing 30 days", summary.PeriodStart, summary.PeriodEnd)
	}
}

func TestUsageService_GetUserUsage_InvertedPeriod(t *testing.T) {
	svc, _, _ := newTestUsageService(10)

	if _, err := svc.GetUserUsage(context.Background(), "user-1", baseTime, baseTime.Add(-time.Second)); err == nil {
		t.Error("expected error for end before start")
	}
}

func TestUsageService_CheckUsageQuota(t *testing.T) {
	svc, _, clk := newTestUsageService(100)
	ctx := context.Background()
	limits := plan.Limits{DailyTokenQuota: 100}

	// Yesterday's usage does not count.
	clk.Set(baseTime.Add(-24 * time.Hour))
	svc.LogUsage(ctx, usage.Record{UserID: "user-1", InputTokens: 500})
	clk.Set(baseTime)
	svc.LogUsage(ctx, usage.Record{UserID: "user-1", InputTokens: 40, OutputTokens: 20})

	status, err := svc.CheckUsageQuota(ctx, "user-1", limits)
	if err != nil {
		t.Fatalf("CheckUsageQuota error: %v", err)
	}
	if !status.WithinQuota || status.CurrentUsage != 60 || status.Limit != 100 {
		t.Errorf("status = %+v, want within quota at 60/100", status)
	}

	svc.LogUsage(ctx, usage.Record{UserID: "user-1", OutputTokens: 40})
	status, _ = svc.CheckUsageQuota(ctx, "user-1", limits)
	if status.WithinQuota {
		t.Errorf("status = %+v, want quota exceeded at 100/100", status)
	}

	status, _ = svc.CheckUsageQuota(ctx, "user-1", plan.Limits{})
	if !status.WithinQuota {
		t.Error("zero quota should be unlimited")
	}
}
