package anthropic

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/artpar/lexgate/domain/streaming"
	"github.com/artpar/lexgate/ports"
)

// Upstream event payloads. Only the fields the pipeline reads are decoded.
type streamPayload struct {
	Type    string `json:"type"`
	Message struct {
		Model string     `json:"model"`
		Usage usageBlock `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage usageBlock `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// eventStream adapts an SSE body to ports.Stream, skipping events the
// pipeline does not use (ping, content_block_start/stop).
type eventStream struct {
	body    io.ReadCloser
	decoder *streaming.Decoder
	model   string
}

func newEventStream(body io.ReadCloser, model string) *eventStream {
	return &eventStream{
		body:    body,
		decoder: streaming.NewDecoder(body),
		model:   model,
	}
}

// Next returns the next pipeline-relevant event.
func (s *eventStream) Next() (ports.StreamEvent, error) {
	for {
		ev, err := s.decoder.Next()
		if err != nil {
			return ports.StreamEvent{}, err
		}
		if ev.Data == "" {
			continue
		}

		var p streamPayload
		if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
			return ports.StreamEvent{}, fmt.Errorf("decode %s event: %w", ev.Event, err)
		}
		kind := p.Type
		if kind == "" {
			kind = ev.Event
		}

		switch kind {
		case "message_start":
			if p.Message.Model != "" {
				s.model = p.Message.Model
			}
			return ports.StreamEvent{
				Kind:        ports.StreamStart,
				Model:       s.model,
				InputTokens: p.Message.Usage.InputTokens,
			}, nil
		case "content_block_delta":
			if p.Delta.Text == "" {
				continue
			}
			return ports.StreamEvent{Kind: ports.StreamDelta, Text: p.Delta.Text}, nil
		case "message_delta":
			return ports.StreamEvent{Kind: ports.StreamUsage, OutputTokens: p.Usage.OutputTokens}, nil
		case "message_stop":
			return ports.StreamEvent{Kind: ports.StreamStop}, nil
		case "error":
			msg := p.Error.Message
			if msg == "" {
				msg = "upstream stream error"
			}
			return ports.StreamEvent{Kind: ports.StreamError, Message: msg}, nil
		}
	}
}

// Close releases the upstream connection.
func (s *eventStream) Close() error {
	return s.body.Close()
}
