// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/artpar/lexgate/domain/cache"
	"github.com/artpar/lexgate/domain/chat"
	"github.com/artpar/lexgate/domain/moderation"
	"github.com/artpar/lexgate/domain/plan"
	"github.com/artpar/lexgate/domain/ratelimit"
	"github.com/artpar/lexgate/domain/usage"
	"github.com/artpar/lexgate/domain/validation"
	"github.com/artpar/lexgate/pkg/retry"
	"github.com/artpar/lexgate/ports"
	"github.com/rs/zerolog"
)

// Cache lookup results reported in Outcome.CacheLookup.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// ChatService runs the chat pipeline: auth, rate limit, validation,
// moderation, cache, upstream call, output moderation and usage logging.
type ChatService struct {
	tokens       ports.TokenVerifier
	limiter      *RateLimiter
	guestLimiter *RateLimiter
	cache        ports.ResponseCache
	faqCache     ports.ResponseCache
	usage        *UsageService
	llm          ports.LLM
	clock        ports.Clock
	logger       zerolog.Logger

	// Static configuration (requires restart)
	maxInputLength int
	maxMessages    int
	modelOverride  string
	retryPolicy    retry.Policy
	cacheTTL       time.Duration
	faqTTL         time.Duration
	guestEnabled   bool

	// Dynamic configuration (hot-reloadable)
	plans atomic.Pointer[plan.Table]
}

// ChatDeps contains dependencies for ChatService.
type ChatDeps struct {
	Tokens       ports.TokenVerifier
	Limiter      *RateLimiter
	GuestLimiter *RateLimiter
	Cache        ports.ResponseCache
	FAQCache     ports.ResponseCache
	Usage        *UsageService
	LLM          ports.LLM // nil when no upstream credential is configured
	Clock        ports.Clock
	Logger       zerolog.Logger
}

// ChatConfig contains configuration for ChatService.
type ChatConfig struct {
	Plans          plan.Table
	MaxInputLength int
	MaxMessages    int
	ModelOverride  string // Replaces the plan model when set
	Retry          retry.Policy
	CacheTTL       time.Duration
	FAQTTL         time.Duration
	GuestEnabled   bool
}

// NewChatService creates a new chat service.
func NewChatService(deps ChatDeps, cfg ChatConfig) *ChatService {
	s := &ChatService{
		tokens:         deps.Tokens,
		limiter:        deps.Limiter,
		guestLimiter:   deps.GuestLimiter,
		cache:          deps.Cache,
		faqCache:       deps.FAQCache,
		usage:          deps.Usage,
		llm:            deps.LLM,
		clock:          deps.Clock,
		logger:         deps.Logger,
		maxInputLength: cfg.MaxInputLength,
		maxMessages:    cfg.MaxMessages,
		modelOverride:  cfg.ModelOverride,
		cacheTTL:       cfg.CacheTTL,
		faqTTL:         cfg.FAQTTL,
		guestEnabled:   cfg.GuestEnabled,
	}
	if s.maxInputLength <= 0 {
		s.maxInputLength = validation.DefaultMaxLength
	}
	if s.maxMessages <= 0 {
		s.maxMessages = validation.DefaultMaxMessages
	}

	p := cfg.Retry
	hook := p.OnRetry
	p.OnRetry = func(err error, delay time.Duration) {
		s.logger.Warn().Err(err).Dur("delay", delay).Msg("retrying upstream call")
		if hook != nil {
			hook(err, delay)
		}
	}
	s.retryPolicy = p

	plans := cfg.Plans
	if plans == nil {
		plans = plan.Default
	}
	s.UpdatePlans(plans)
	return s
}

// UpdatePlans swaps the plan table. Safe to call while serving requests.
func (s *ChatService) UpdatePlans(plans plan.Table) {
	s.plans.Store(&plans)
}

// GuestEnabled reports whether POST /ask is served.
func (s *ChatService) GuestEnabled() bool {
	return s.guestEnabled
}

func (s *ChatService) limitsFor(t plan.Tier) plan.Limits {
	return s.plans.Load().LimitsFor(t)
}

// Outcome reports what happened in one pipeline run. The HTTP layer turns it
// into headers, metrics and log fields.
type Outcome struct {
	Endpoint      chat.Endpoint
	Identity      *ports.Identity
	Limiter       string
	Rate          *chat.RateInfo // nil until the limiter ran
	CacheLookup   string         // CacheHit, CacheMiss, or empty when skipped
	QuotaExceeded bool
	InputFlags    []string
	OutputFlags   []string
	Usage         chat.Usage
	Model         string
	Code          string // Empty on success
	Aborted       bool
	Latency       time.Duration
}

// ChatResult is the outcome of a single-shot request.
type ChatResult struct {
	Outcome
	Response chat.Response
	Error    *chat.ErrorResponse
}

// run carries per-request pipeline state.
type run struct {
	out      Outcome
	start    time.Time
	limits   plan.Limits
	model    string
	context  chat.Context
	messages []chat.Message
	input    string // Latest user message, sanitized
}

// Chat handles POST /chat.
func (s *ChatService) Chat(ctx context.Context, req chat.Request) ChatResult {
	r, errResp := s.admit(ctx, chat.EndpointChat, req)
	if errResp != nil {
		return s.fail(ctx, r, errResp)
	}
	return s.complete(ctx, r, req, s.cache, s.cacheTTL)
}

// Ask handles POST /ask: an unauthenticated single-shot question limited per
// client IP and cached in the FAQ cache.
func (s *ChatService) Ask(ctx context.Context, req chat.Request) ChatResult {
	r, errResp := s.admit(ctx, chat.EndpointAsk, req)
	if errResp != nil {
		return s.fail(ctx, r, errResp)
	}
	return s.complete(ctx, r, req, s.faqCache, s.faqTTL)
}

// admit runs the stages shared by every endpoint: auth, rate limit, quota,
// validation, input moderation.
func (s *ChatService) admit(ctx context.Context, endpoint chat.Endpoint, req chat.Request) (*run, *chat.ErrorResponse) {
	r := &run{start: s.clock.Now()}
	r.out.Endpoint = endpoint

	// 1. Resolve identity (I/O)
	var (
		id      ports.Identity
		limiter *RateLimiter
		key     string
	)
	if endpoint == chat.EndpointAsk {
		if !s.guestEnabled {
			errResp := chat.ErrUnauthorized.WithMessage("Guest questions are disabled")
			return r, &errResp
		}
		id = ports.Identity{ID: "guest:" + req.RemoteIP, Plan: plan.TierFree}
		limiter, key = s.guestLimiter, req.RemoteIP
	} else {
		if req.Token == "" {
			return r, &chat.ErrUnauthorized
		}
		var err error
		id, err = s.tokens.Verify(ctx, req.Token)
		if err != nil {
			s.logger.Debug().Err(err).Str("trace_id", req.TraceID).Msg("token rejected")
			errResp := chat.ErrUnauthorized.WithMessage("Invalid or expired token")
			return r, &errResp
		}
		limiter, key = s.limiter, id.ID
	}
	r.out.Identity = &id
	r.limits = s.limitsFor(id.Plan)
	r.model = r.limits.Model
	if s.modelOverride != "" {
		r.model = s.modelOverride
	}

	// 2. Rate limit (I/O)
	r.out.Limiter = limiter.Name()
	maxRequests := 0
	if endpoint != chat.EndpointAsk {
		maxRequests = r.limits.RequestsPerMinute
	}
	rl, err := limiter.CheckN(ctx, key, maxRequests)
	if err != nil {
		// Fail open when the store is unavailable.
		s.logger.Error().Err(err).Str("limiter", limiter.Name()).Msg("rate limit check failed")
		rl = ratelimit.Result{Allowed: true, Remaining: maxRequests}
	}
	r.out.Rate = &chat.RateInfo{
		Remaining:  rl.Remaining,
		ResetIn:    rl.ResetIn,
		RetryAfter: rl.RetryAfterSeconds(),
	}
	if !rl.Allowed {
		return r, &chat.ErrRateLimited
	}

	// 3. Advisory quota check (I/O)
	if endpoint != chat.EndpointAsk {
		status, err := s.usage.CheckUsageQuota(ctx, id.ID, r.limits)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", id.ID).Msg("quota check failed")
		} else if !status.WithinQuota {
			r.out.QuotaExceeded = true
			s.logger.Warn().
				Str("user_id", id.ID).
				Str("plan", string(id.Plan)).
				Int64("used", status.CurrentUsage).
				Int64("limit", status.Limit).
				Msg("daily token quota exceeded")
		}
	}

	// 4. Validate message list (PURE)
	maxMessages := r.limits.MaxConversationLength
	if maxMessages <= 0 || maxMessages > s.maxMessages {
		maxMessages = s.maxMessages
	}
	if endpoint == chat.EndpointAsk {
		maxMessages = 1
	}
	v := validation.ValidateMessages(req.Messages, maxMessages, s.maxInputLength)
	if !v.Valid {
		errResp := chat.ErrInvalidInput.WithMessage(v.Reason)
		return r, &errResp
	}
	r.messages = v.Messages
	if len(v.Warnings) > 0 {
		s.logger.Debug().Strs("warnings", v.Warnings).Str("user_id", id.ID).Msg("input sanitized")
	}

	input, ok := validation.LastUserMessage(r.messages)
	if !ok {
		errResp := chat.ErrInvalidInput.WithMessage("Conversation must contain a user message")
		return r, &errResp
	}
	r.input = input

	// 5. Moderate latest user message (PURE)
	verdict := moderation.ModerateInput(input)
	r.out.InputFlags = verdict.FlaggedCategories()
	if verdict.Blocked {
		errResp := chat.ErrContentBlocked.WithMessage(verdict.Reason)
		return r, &errResp
	}

	r.context = chat.ParseContext(req.Context)
	if endpoint == chat.EndpointAsk && req.Context == "" {
		r.context = chat.ContextFAQ
	}
	return r, nil
}

// complete runs the single-shot tail: cache, upstream, output moderation.
func (s *ChatService) complete(ctx context.Context, r *run, req chat.Request, rc ports.ResponseCache, ttl time.Duration) ChatResult {
	singleTurn := len(r.messages) == 1

	// 6. Cache lookup (I/O)
	if singleTurn && rc != nil {
		if hit, ok := rc.Get(r.input, string(r.context)); ok {
			r.out.CacheLookup = CacheHit
			r.out.Model = hit.Model
			s.record(ctx, r, true, "")
			return ChatResult{
				Outcome: r.out,
				Response: chat.Response{
					Content: hit.Content,
					Model:   hit.Model,
					Cached:  true,
				},
			}
		}
		r.out.CacheLookup = CacheMiss
	}

	// 7. Upstream credential
	if s.llm == nil {
		return s.fail(ctx, r, &chat.ErrMissingAPIKey)
	}

	// 8. Call upstream with retries (I/O)
	creq := s.completionRequest(r, req)
	completion, err := retry.DoValue(ctx, s.retryPolicy, func(ctx context.Context) (ports.Completion, error) {
		return s.llm.Complete(ctx, creq)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", r.out.Identity.ID).
			Str("model", creq.Model).
			Msg("upstream call failed")
		return s.fail(ctx, r, upstreamError(err))
	}

	r.out.Model = completion.Model
	if r.out.Model == "" {
		r.out.Model = creq.Model
	}
	r.out.Usage = chat.Usage{InputTokens: completion.InputTokens, OutputTokens: completion.OutputTokens}

	// 9. Output moderation and disclaimer (PURE)
	verdict := moderation.ModerateOutput(completion.Content)
	r.out.OutputFlags = verdict.FlaggedCategories()
	moderated := completion.Content
	if verdict.Filtered != nil {
		moderated = *verdict.Filtered
	}
	content := moderation.EnsureLegalDisclaimer(moderated)

	// 10. Cache single-turn answers (I/O). Cacheability is judged on the
	// answer before the disclaimer is appended.
	if singleTurn && rc != nil && cache.Cacheable(moderated) {
		rc.Set(r.input, content, r.out.Model, string(r.context), ttl)
	}

	s.record(ctx, r, true, "")
	return ChatResult{
		Outcome: r.out,
		Response: chat.Response{
			Content:  content,
			Usage:    r.out.Usage,
			Model:    r.out.Model,
			Filtered: verdict.Filtered != nil,
		},
	}
}

func (s *ChatService) completionRequest(r *run, req chat.Request) ports.CompletionRequest {
	return ports.CompletionRequest{
		Model:       r.model,
		MaxTokens:   chat.ClampMaxTokens(req.MaxTokens, r.limits.MaxTokensPerRequest),
		Temperature: chat.ClampTemperature(req.Temperature),
		System:      chat.SystemPrompt(r.context),
		Messages:    r.messages,
	}
}

// fail records a failed outcome and wraps it in a ChatResult.
func (s *ChatService) fail(ctx context.Context, r *run, errResp *chat.ErrorResponse) ChatResult {
	r.out.Code = errResp.Code
	if r.out.Identity != nil {
		s.record(ctx, r, false, errResp.Code)
	}
	return ChatResult{Outcome: r.out, Error: errResp}
}

// record logs the terminal outcome to the usage tracker and the log.
func (s *ChatService) record(ctx context.Context, r *run, success bool, code string) {
	r.out.Latency = s.clock.Now().Sub(r.start)
	r.out.Code = code

	model := r.out.Model
	if model == "" {
		model = r.model
	}
	s.usage.LogUsage(ctx, usage.Record{
		UserID:       r.out.Identity.ID,
		Endpoint:     string(r.out.Endpoint),
		InputTokens:  r.out.Usage.InputTokens,
		OutputTokens: r.out.Usage.OutputTokens,
		Model:        model,
		Cached:       r.out.CacheLookup == CacheHit,
		LatencyMs:    r.out.Latency.Milliseconds(),
		Success:      success,
		ErrorCode:    code,
	})

	ev := s.logger.Info()
	if !success {
		ev = s.logger.Warn()
	}
	ev.Str("user_id", r.out.Identity.ID).
		Str("plan", string(r.out.Identity.Plan)).
		Str("endpoint", string(r.out.Endpoint)).
		Str("code", code).
		Bool("cached", r.out.CacheLookup == CacheHit).
		Int64("latency_ms", r.out.Latency.Milliseconds()).
		Msg("chat request finished")
}

// upstreamError maps an upstream failure to a client error, propagating the
// upstream status and message when the API supplied them.
func upstreamError(err error) *chat.ErrorResponse {
	errResp := chat.ErrUpstream
	var sc ports.StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() >= 400 {
		errResp.Status = sc.StatusCode()
		var m interface{ UpstreamMessage() string }
		if errors.As(err, &m) && m.UpstreamMessage() != "" {
			errResp.Message = m.UpstreamMessage()
		}
	}
	return &errResp
}

// -----------------------------------------------------------------------------
// Streaming
// -----------------------------------------------------------------------------

// StreamSession is an admitted stream with an open upstream body.
type StreamSession struct {
	run    *run
	stream ports.Stream
}

// StreamResult is the outcome of PrepareStream. Exactly one of Session and
// Error is set.
type StreamResult struct {
	Outcome
	Session *StreamSession
	Error   *chat.ErrorResponse
}

// PrepareStream runs every stage up to and including opening the upstream
// stream. Failures here are reported before any event is written.
func (s *ChatService) PrepareStream(ctx context.Context, req chat.Request) StreamResult {
	r, errResp := s.admit(ctx, chat.EndpointStream, req)
	if errResp != nil {
		res := s.fail(ctx, r, errResp)
		return StreamResult{Outcome: res.Outcome, Error: res.Error}
	}
	if s.llm == nil {
		res := s.fail(ctx, r, &chat.ErrMissingAPIKey)
		return StreamResult{Outcome: res.Outcome, Error: res.Error}
	}

	creq := s.completionRequest(r, req)
	stream, err := retry.DoValue(ctx, s.retryPolicy, func(ctx context.Context) (ports.Stream, error) {
		return s.llm.Stream(ctx, creq)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", r.out.Identity.ID).
			Str("model", creq.Model).
			Msg("upstream stream failed to open")
		res := s.fail(ctx, r, upstreamError(err))
		return StreamResult{Outcome: res.Outcome, Error: res.Error}
	}
	return StreamResult{Outcome: r.out, Session: &StreamSession{run: r, stream: stream}}
}

// Outcome returns the session's outcome so far.
func (ss *StreamSession) Outcome() Outcome {
	return ss.run.out
}

// RunStream forwards upstream deltas to emit in order, then emits the
// disclaimer (when appended) and a DoneEvent, or an ErrorEvent on failure.
// The upstream body is always closed. When ctx is cancelled or emit fails,
// forwarding stops, nothing more is emitted and no usage is recorded.
func (s *ChatService) RunStream(ctx context.Context, ss *StreamSession, emit func(any) error) Outcome {
	r := ss.run
	defer ss.stream.Close()

	var (
		text    strings.Builder
		in      int
		out     int
		stopped bool
	)
	model := r.model

	abort := func() Outcome {
		r.out.Aborted = true
		r.out.Latency = s.clock.Now().Sub(r.start)
		r.out.Usage = chat.Usage{InputTokens: in, OutputTokens: out}
		s.logger.Info().
			Str("user_id", r.out.Identity.ID).
			Int("output_tokens", out).
			Msg("stream aborted by client")
		return r.out
	}

	// failStream emits an in-band error and records it.
	failStream := func(code, message string) Outcome {
		r.out.Model = model
		r.out.Usage = chat.Usage{InputTokens: in, OutputTokens: out}
		if err := emit(chat.ErrorEvent{Error: message}); err != nil && ctx.Err() != nil {
			return abort()
		}
		s.record(ctx, r, false, code)
		return r.out
	}

loop:
	for {
		if ctx.Err() != nil {
			return abort()
		}
		ev, err := ss.stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return abort()
			}
			s.logger.Error().Err(err).Str("user_id", r.out.Identity.ID).Msg("upstream stream failed")
			return failStream(chat.CodeStreamError, "Stream interrupted")
		}

		switch ev.Kind {
		case ports.StreamStart:
			if ev.Model != "" {
				model = ev.Model
			}
			in = ev.InputTokens
		case ports.StreamDelta:
			text.WriteString(ev.Text)
			if err := emit(chat.TextEvent{Text: ev.Text}); err != nil {
				return abort()
			}
		case ports.StreamUsage:
			out = ev.OutputTokens
		case ports.StreamStop:
			stopped = true
			break loop
		case ports.StreamError:
			s.logger.Error().Str("message", ev.Message).Str("user_id", r.out.Identity.ID).Msg("upstream stream error event")
			return failStream(chat.CodeAPIError, ev.Message)
		}
	}

	// A body that ends without message_stop was cut off upstream.
	if !stopped {
		s.logger.Error().Str("user_id", r.out.Identity.ID).Msg("upstream stream ended before message_stop")
		return failStream(chat.CodeStreamError, "Stream interrupted")
	}

	r.out.Model = model
	r.out.Usage = chat.Usage{InputTokens: in, OutputTokens: out}

	raw := text.String()
	verdict := moderation.ModerateOutput(raw)
	r.out.OutputFlags = verdict.FlaggedCategories()
	content := raw
	if verdict.Filtered != nil {
		content = *verdict.Filtered
	}
	final := moderation.EnsureLegalDisclaimer(content)

	if final != content {
		if err := emit(chat.TextEvent{Text: moderation.Disclaimer}); err != nil {
			return abort()
		}
	}
	done := chat.DoneEvent{Done: true, Usage: r.out.Usage, Model: model}
	if verdict.Filtered != nil {
		done.Filtered = true
		done.Content = final
	}
	if err := emit(done); err != nil {
		return abort()
	}

	s.record(ctx, r, true, "")
	return r.out
}

// UserUsage returns the caller's usage summary and today's quota status.
func (s *ChatService) UserUsage(ctx context.Context, token string, start, end time.Time) (usage.Summary, usage.QuotaStatus, *chat.ErrorResponse) {
	if token == "" {
		return usage.Summary{}, usage.QuotaStatus{}, &chat.ErrUnauthorized
	}
	id, err := s.tokens.Verify(ctx, token)
	if err != nil {
		errResp := chat.ErrUnauthorized.WithMessage("Invalid or expired token")
		return usage.Summary{}, usage.QuotaStatus{}, &errResp
	}

	summary, err := s.usage.GetUserUsage(ctx, id.ID, start, end)
	if err != nil {
		errResp := chat.ErrInvalidInput.WithMessage(err.Error())
		return usage.Summary{}, usage.QuotaStatus{}, &errResp
	}
	quota, err := s.usage.CheckUsageQuota(ctx, id.ID, s.limitsFor(id.Plan))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id.ID).Msg("quota check failed")
		return usage.Summary{}, usage.QuotaStatus{}, &chat.ErrInternal
	}
	return summary, quota, nil
}
