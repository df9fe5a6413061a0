// Package http provides the HTTP surface of the chat pipeline.
package http

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/lexgate/adapters/metrics"
	"github.com/artpar/lexgate/app"
	"github.com/artpar/lexgate/domain/chat"
	"github.com/artpar/lexgate/domain/streaming"
	"github.com/artpar/lexgate/domain/usage"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// ErrorResponseBody is the JSON error body.
type ErrorResponseBody struct {
	Error string `json:"error" example:"Too many requests. Please try again later."`
	Code  string `json:"code" example:"RATE_LIMITED"`
}

// ChatRequestBody is the JSON body accepted by /chat, /stream and /ask.
type ChatRequestBody struct {
	Messages    json.RawMessage `json:"messages" swaggertype:"array,object"`
	Context     string          `json:"context,omitempty" example:"employment"`
	MaxTokens   int             `json:"maxTokens,omitempty" example:"1024"`
	Temperature *float64        `json:"temperature,omitempty" example:"0.7"`
}

// UsageResponse is returned by GET /usage.
type UsageResponse struct {
	Usage usage.Summary     `json:"usage"`
	Quota usage.QuotaStatus `json:"quota"`
}

// ChatHandler serves the chat pipeline endpoints.
type ChatHandler struct {
	service *app.ChatService
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// NewChatHandler creates a chat handler. m may be nil.
func NewChatHandler(service *app.ChatService, logger zerolog.Logger, m *metrics.Collector) *ChatHandler {
	return &ChatHandler{service: service, logger: logger, metrics: m}
}

// Chat answers a conversation in one response.
//
//	@Summary		Chat completion
//	@Description	Authenticates, rate limits, validates and moderates the conversation, then returns the model answer with a legal disclaimer
//	@Tags			Chat
//	@Accept			json
//	@Produce		json
//	@Param			Authorization	header		string			true	"Bearer token"
//	@Param			body			body		ChatRequestBody	true	"Conversation"
//	@Success		200				{object}	chat.Response
//	@Failure		400				{object}	ErrorResponseBody	"Invalid input or blocked content"
//	@Failure		401				{object}	ErrorResponseBody	"Missing or invalid token"
//	@Failure		429				{object}	ErrorResponseBody	"Rate limit exceeded"
//	@Failure		500				{object}	ErrorResponseBody	"Service misconfigured"
//	@Failure		502				{object}	ErrorResponseBody	"Upstream error"
//	@Security		BearerAuth
//	@Router			/chat [post]
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	res := h.service.Chat(r.Context(), h.decode(r))
	h.writeResult(w, res)
}

// Ask answers a single guest question.
//
//	@Summary		Guest question
//	@Description	Single-turn question without a token, limited per client IP and answered from the FAQ cache when possible
//	@Tags			Chat
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequestBody	true	"Single user message"
//	@Success		200		{object}	chat.Response
//	@Failure		400		{object}	ErrorResponseBody
//	@Failure		429		{object}	ErrorResponseBody
//	@Router			/ask [post]
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	res := h.service.Ask(r.Context(), h.decode(r))
	h.writeResult(w, res)
}

func (h *ChatHandler) writeResult(w http.ResponseWriter, res app.ChatResult) {
	h.observe(res.Outcome)
	setRateHeaders(w, res.Rate)
	if res.Error != nil {
		writeError(w, res.Error)
		return
	}
	writeJSON(w, http.StatusOK, res.Response)
}

// Stream answers a conversation as server-sent events.
//
//	@Summary		Streaming chat completion
//	@Description	Same pipeline as /chat. Emits data events {"text"}, then {"done":true,"usage","model"}, or {"error"}. Pipeline failures before the stream starts are returned as JSON errors.
//	@Tags			Chat
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			Authorization	header	string			true	"Bearer token"
//	@Param			body			body	ChatRequestBody	true	"Conversation"
//	@Success		200				"Event stream"
//	@Failure		400				{object}	ErrorResponseBody
//	@Failure		401				{object}	ErrorResponseBody
//	@Failure		429				{object}	ErrorResponseBody
//	@Security		BearerAuth
//	@Router			/stream [post]
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res := h.service.PrepareStream(ctx, h.decode(r))
	setRateHeaders(w, res.Rate)
	if res.Error != nil {
		h.observe(res.Outcome)
		writeError(w, res.Error)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The server write timeout is sized for single responses.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug().Err(err).Msg("stream write deadline not cleared")
	}
	w.WriteHeader(http.StatusOK)

	if _, ok := w.(http.Flusher); !ok {
		h.logger.Warn().Err(streaming.ErrNotFlushable).Msg("events will be buffered")
	}

	out := h.service.RunStream(ctx, res.Session, streaming.NewEncoder(w).Encode)
	h.observe(out)
}

// Usage reports the caller's usage.
//
//	@Summary		Usage summary
//	@Description	Token, request and cost totals for the caller (default: trailing 30 days) plus today's quota status
//	@Tags			Usage
//	@Produce		json
//	@Param			Authorization	header		string	true	"Bearer token"
//	@Param			start			query		string	false	"Period start (RFC3339)"
//	@Param			end				query		string	false	"Period end (RFC3339)"
//	@Success		200				{object}	UsageResponse
//	@Failure		400				{object}	ErrorResponseBody
//	@Failure		401				{object}	ErrorResponseBody
//	@Security		BearerAuth
//	@Router			/usage [get]
func (h *ChatHandler) Usage(w http.ResponseWriter, r *http.Request) {
	start, err := queryTime(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}

	summary, quota, errResp := h.service.UserUsage(r.Context(), extractToken(r), start, end)
	if errResp != nil {
		writeError(w, errResp)
		return
	}
	writeJSON(w, http.StatusOK, UsageResponse{Usage: summary, Quota: quota})
}

// queryTime parses an optional RFC3339 query parameter.
func queryTime(r *http.Request, name string) (time.Time, *chat.ErrorResponse) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		errResp := chat.ErrInvalidInput.WithMessage("Invalid " + name + " time, want RFC3339")
		return time.Time{}, &errResp
	}
	return t, nil
}

// decode builds a pipeline request. Malformed bodies yield an empty message
// list, which validation rejects after auth and rate limiting.
func (h *ChatHandler) decode(r *http.Request) chat.Request {
	req := chat.Request{
		Token:    extractToken(r),
		RemoteIP: extractIP(r),
		TraceID:  middleware.GetReqID(r.Context()),
	}
	if r.Body == nil {
		return req
	}

	var body ChatRequestBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		h.logger.Debug().Err(err).Str("trace_id", req.TraceID).Msg("malformed request body")
		return req
	}
	req.Messages = body.Messages
	req.Context = body.Context
	req.MaxTokens = body.MaxTokens
	req.Temperature = body.Temperature
	return req
}

// observe turns a pipeline outcome into metrics.
func (h *ChatHandler) observe(o app.Outcome) {
	if h.metrics == nil {
		return
	}
	m := h.metrics

	planLabel := "none"
	if o.Identity != nil {
		planLabel = string(o.Identity.Plan)
	}
	code := o.Code
	switch {
	case o.Aborted:
		code = "aborted"
		m.StreamsAborted.Inc()
	case code == "":
		code = "ok"
	}
	m.PipelineOutcomes.WithLabelValues(string(o.Endpoint), planLabel, code).Inc()

	switch o.Code {
	case chat.CodeUnauthorized:
		m.AuthFailures.WithLabelValues(string(o.Endpoint)).Inc()
	case chat.CodeRateLimited:
		m.RateLimitHits.WithLabelValues(o.Limiter, planLabel).Inc()
	}

	if o.CacheLookup != "" {
		cacheName := "general"
		if o.Endpoint == chat.EndpointAsk {
			cacheName = "faq"
		}
		m.CacheLookups.WithLabelValues(cacheName, o.CacheLookup).Inc()
	}
	if o.QuotaExceeded {
		m.QuotaExceeded.WithLabelValues(planLabel).Inc()
	}
	for _, c := range o.InputFlags {
		m.ModerationFlags.WithLabelValues("input", c).Inc()
	}
	for _, c := range o.OutputFlags {
		m.ModerationFlags.WithLabelValues("output", c).Inc()
	}
	if o.Model != "" {
		m.TokensTotal.WithLabelValues(o.Model, "input").Add(float64(o.Usage.InputTokens))
		m.TokensTotal.WithLabelValues(o.Model, "output").Add(float64(o.Usage.OutputTokens))
	}
}

func setRateHeaders(w http.ResponseWriter, rate *chat.RateInfo) {
	if rate == nil {
		return
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rate.Remaining))
	if rate.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rate.RetryAfter))
	}
}

// extractToken returns the bearer token from the Authorization header.
func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// extractIP returns the client IP. When proxy headers are trusted,
// middleware.RealIP has already applied them to RemoteAddr.
func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError writes an {error, code} JSON body.
func writeError(w http.ResponseWriter, err *chat.ErrorResponse) {
	writeJSON(w, err.Status, ErrorResponseBody{Error: err.Message, Code: err.Code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
