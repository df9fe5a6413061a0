package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/artpar/lexgate/ports"
)

// InstrumentedLLM records duration, in-flight count and failures of upstream
// calls. Stream durations cover opening the stream, not reading it.
type InstrumentedLLM struct {
	next ports.LLM
	m    *Collector
}

// InstrumentLLM wraps llm with metrics.
func InstrumentLLM(llm ports.LLM, m *Collector) *InstrumentedLLM {
	return &InstrumentedLLM{next: llm, m: m}
}

func (l *InstrumentedLLM) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	done := l.start()
	c, err := l.next.Complete(ctx, req)
	done("complete", err)
	return c, err
}

func (l *InstrumentedLLM) Stream(ctx context.Context, req ports.CompletionRequest) (ports.Stream, error) {
	done := l.start()
	s, err := l.next.Stream(ctx, req)
	done("stream", err)
	return s, err
}

func (l *InstrumentedLLM) start() func(mode string, err error) {
	l.m.UpstreamInFlight.Inc()
	begin := time.Now()
	return func(mode string, err error) {
		l.m.UpstreamInFlight.Dec()
		status := ErrorType(err)
		l.m.UpstreamDuration.WithLabelValues(mode, status).Observe(time.Since(begin).Seconds())
		if err != nil {
			l.m.UpstreamErrors.WithLabelValues(status).Inc()
		}
	}
}

// ErrorType classifies an upstream result for metric labels.
func ErrorType(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	var sc ports.StatusCoder
	if errors.As(err, &sc) {
		return strconv.Itoa(sc.StatusCode())
	}
	return "transport"
}

var _ ports.LLM = (*InstrumentedLLM)(nil)
