package streaming_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/artpar/lexgate/domain/streaming"
)

// decodeAll drains a decoder over body.
func decodeAll(body string) []streaming.Event {
	d := streaming.NewDecoder(strings.NewReader(body))
	var events []streaming.Event
	for {
		ev, err := d.Next()
		if err != nil {
			return events
		}
		events = append(events, ev)
	}
}

func TestDecoder_Events(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []streaming.Event
	}{
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "single event",
			input: "data: hello\n\n",
			want:  []streaming.Event{{Data: "hello"}},
		},
		{
			name:  "event with type",
			input: "event: message_start\ndata: {}\n\n",
			want:  []streaming.Event{{Event: "message_start", Data: "{}"}},
		},
		{
			name:  "multi-line data",
			input: "data: line1\ndata: line2\n\n",
			want:  []streaming.Event{{Data: "line1\nline2"}},
		},
		{
			name:  "event with id",
			input: "id: 123\ndata: hello\n\n",
			want:  []streaming.Event{{ID: "123", Data: "hello"}},
		},
		{
			name:  "comment ignored",
			input: ": ping\n\ndata: hello\n\n",
			want:  []streaming.Event{{Data: "hello"}},
		},
		{
			name:  "crlf line endings",
			input: "event: ping\r\ndata: {}\r\n\r\n",
			want:  []streaming.Event{{Event: "ping", Data: "{}"}},
		},
		{
			name:  "no trailing newline",
			input: "data: hello",
			want:  []streaming.Event{{Data: "hello"}},
		},
		{
			name:  "no space after colon",
			input: "data:hello\n\n",
			want:  []streaming.Event{{Data: "hello"}},
		},
		{
			name:  "typical upstream stream",
			input: "event: content_block_delta\ndata: {\"delta\":{\"text\":\"Hi\"}}\n\nevent: content_block_delta\ndata: {\"delta\":{\"text\":\" there\"}}\n\nevent: message_stop\ndata: {}\n\n",
			want: []streaming.Event{
				{Event: "content_block_delta", Data: `{"delta":{"text":"Hi"}}`},
				{Event: "content_block_delta", Data: `{"delta":{"text":" there"}}`},
				{Event: "message_stop", Data: "{}"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeAll(tt.input)

			if len(got) != len(tt.want) {
				t.Fatalf("decoded %d events, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecoder_Retry(t *testing.T) {
	d := streaming.NewDecoder(strings.NewReader("retry: 3000\ndata: x\n\n"))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Retry != 3000 {
		t.Errorf("Retry = %d, want 3000", ev.Retry)
	}
}

func TestDecoder_EOFIsSticky(t *testing.T) {
	d := streaming.NewDecoder(strings.NewReader("data: one\n\n"))

	if _, err := d.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := d.Next(); !errors.Is(err, io.EOF) {
			t.Errorf("Next() after end = %v, want io.EOF", err)
		}
	}
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "data: partial\n\ndata: cut"), nil
	}
	return 0, errors.New("connection reset by peer")
}

func TestDecoder_TransportError(t *testing.T) {
	d := streaming.NewDecoder(&failingReader{})

	ev, err := d.Next()
	if err != nil || ev.Data != "partial" {
		t.Fatalf("Next() = %+v, %v; want partial event", ev, err)
	}

	_, err = d.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Next() error = %v, want transport error", err)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("error = %v, want wrapped transport error", err)
	}
}

func TestEncoder(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := streaming.NewEncoder(rec)

	if err := enc.Encode(map[string]string{"text": "Hi"}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := enc.Encode(map[string]bool{"done": true}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := "data: {\"text\":\"Hi\"}\n\ndata: {\"done\":true}\n\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if !rec.Flushed {
		t.Error("expected recorder to be flushed")
	}
}
