package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/artpar/lexgate/adapters/metrics"
	"github.com/artpar/lexgate/ports"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	out := make(map[string]int)
	for _, f := range families {
		out[f.GetName()] = len(f.GetMetric())
	}
	return out
}

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m.RequestsTotal == nil || m.PipelineOutcomes == nil || m.CacheLookups == nil || m.StreamsAborted == nil {
		t.Fatal("collector has nil metrics")
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two collectors on separate registries must not collide.
	metrics.NewWithRegistry(prometheus.NewRegistry())
	metrics.NewWithRegistry(prometheus.NewRegistry())
}

func TestPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.PipelineOutcomes.WithLabelValues("chat", "free", "ok").Inc()
	m.PipelineOutcomes.WithLabelValues("chat", "free", "RATE_LIMITED").Inc()
	m.CacheLookups.WithLabelValues("general", "hit").Inc()
	m.RateLimitHits.WithLabelValues("chat", "free").Inc()
	m.StreamsAborted.Inc()
	m.TokensTotal.WithLabelValues("claude-3-5-haiku-20241022", "input").Add(42)

	got := gather(t, reg)
	tests := map[string]int{
		"lexgate_pipeline_outcomes_total": 2,
		"lexgate_cache_lookups_total":     1,
		"lexgate_rate_limit_hits_total":   1,
		"lexgate_streams_aborted_total":   1,
		"lexgate_tokens_total":            1,
	}
	for name, want := range tests {
		if got[name] != want {
			t.Errorf("%s series = %d, want %d", name, got[name], want)
		}
	}
}

func TestRequestsInFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestsInFlight.Inc()
	m.RequestsInFlight.Inc()
	m.RequestsInFlight.Dec()

	families, _ := reg.Gather()
	for _, f := range families {
		if f.GetName() == "lexgate_requests_in_flight" {
			if v := f.GetMetric()[0].GetGauge().GetValue(); v != 1 {
				t.Errorf("in flight = %v, want 1", v)
			}
			return
		}
	}
	t.Error("lexgate_requests_in_flight not found")
}

type stubLLM struct{ err error }

func (s stubLLM) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	return ports.Completion{Content: "ok"}, s.err
}

func (s stubLLM) Stream(ctx context.Context, req ports.CompletionRequest) (ports.Stream, error) {
	return nil, s.err
}

type statusErr int

func (e statusErr) Error() string   { return "status " + strconv.Itoa(int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), "canceled"},
		{statusErr(529), "529"},
		{errors.New("connection refused"), "transport"},
	}
	for _, tt := range tests {
		if got := metrics.ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInstrumentLLM(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	ctx := context.Background()

	metrics.InstrumentLLM(stubLLM{}, m).Complete(ctx, ports.CompletionRequest{})
	metrics.InstrumentLLM(stubLLM{err: statusErr(503)}, m).Stream(ctx, ports.CompletionRequest{})

	got := gather(t, reg)
	if got["lexgate_upstream_duration_seconds"] != 2 {
		t.Errorf("duration series = %d, want 2", got["lexgate_upstream_duration_seconds"])
	}
	if got["lexgate_upstream_errors_total"] != 1 {
		t.Errorf("error series = %d, want 1", got["lexgate_upstream_errors_total"])
	}
}

func TestRegisterCacheSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	size := 3
	m.RegisterCacheSize("general", func() int { return size })
	m.RegisterCacheSize("faq", func() int { return 0 })

	size = 7
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "lexgate_cache_entries" {
			continue
		}
		if len(f.GetMetric()) != 2 {
			t.Fatalf("cache_entries series = %d, want 2", len(f.GetMetric()))
		}
		for _, metric := range f.GetMetric() {
			if metric.GetLabel()[0].GetValue() == "general" {
				if v := metric.GetGauge().GetValue(); v != 7 {
					t.Errorf("general entries = %v, want 7", v)
				}
			}
		}
		return
	}
	t.Error("lexgate_cache_entries not found")
}
