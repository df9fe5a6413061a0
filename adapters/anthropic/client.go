// Package anthropic calls the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/lexgate/domain/chat"
	"github.com/artpar/lexgate/ports"
)

// Defaults
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultVersion = "2023-06-01"

	maxErrorBody = 64 << 10
	maxBody      = 10 << 20
)

// Config configures the client.
type Config struct {
	BaseURL         string
	APIKey          string
	Version         string        // anthropic-version header
	Timeout         time.Duration // Non-streaming requests only
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Client implements ports.LLM over HTTP.
type Client struct {
	client          *http.Client // Buffered requests
	streamingClient *http.Client // Streams, no overall timeout
	endpoint        string
	apiKey          string
	version         string
}

// New creates a client. It does not require an API key; calls without one
// are rejected by the upstream.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	// SSE must not be compressed mid-stream.
	streamingTransport := transport.Clone()
	streamingTransport.DisableCompression = true

	return &Client{
		client:          &http.Client{Transport: transport, Timeout: cfg.Timeout},
		streamingClient: &http.Client{Transport: streamingTransport},
		endpoint:        base.ResolveReference(&url.URL{Path: "/v1/messages"}).String(),
		apiKey:          cfg.APIKey,
		version:         cfg.Version,
	}, nil
}

// APIError is a non-2xx upstream response.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("upstream status %d: %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// StatusCode returns the upstream HTTP status.
func (e *APIError) StatusCode() int {
	return e.Status
}

// UpstreamMessage returns the message supplied by the API.
func (e *APIError) UpstreamMessage() string {
	return e.Message
}

type messageRequest struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	System      string         `json:"system,omitempty"`
	Messages    []chat.Message `json:"messages"`
	Stream      bool           `json:"stream,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usageBlock struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messageResponse struct {
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   usageBlock     `json:"usage"`
}

type errorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a non-streaming request.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	resp, err := c.do(ctx, c.client, req, false)
	if err != nil {
		return ports.Completion{}, err
	}
	defer resp.Body.Close()

	var mr messageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&mr); err != nil {
		return ports.Completion{}, fmt.Errorf("decode response: %w", err)
	}

	var text strings.Builder
	for _, b := range mr.Content {
		if b.Type == "" || b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	model := mr.Model
	if model == "" {
		model = req.Model
	}
	return ports.Completion{
		Content:      text.String(),
		Model:        model,
		InputTokens:  mr.Usage.InputTokens,
		OutputTokens: mr.Usage.OutputTokens,
	}, nil
}

// Stream sends a streaming request and returns once response headers arrive.
// Cancelling ctx aborts the body read.
func (c *Client) Stream(ctx context.Context, req ports.CompletionRequest) (ports.Stream, error) {
	resp, err := c.do(ctx, c.streamingClient, req, true)
	if err != nil {
		return nil, err
	}
	return newEventStream(resp.Body, req.Model), nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, req ports.CompletionRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(messageRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    req.Messages,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error.Message != "" {
		apiErr.Type = eb.Error.Type
		apiErr.Message = eb.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// Ensure interface compliance.
var (
	_ ports.LLM         = (*Client)(nil)
	_ ports.StatusCoder = (*APIError)(nil)
)
