// Package streaming decodes and encodes server-sent events.
package streaming

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Event is a single server-sent event.
type Event struct {
	Event string `json:"event,omitempty"` // From "event:" field
	Data  string `json:"data"`            // "data:" lines joined with \n
	ID    string `json:"id,omitempty"`
	Retry int    `json:"retry,omitempty"` // Milliseconds
}

// maxLineSize bounds a single SSE line.
const maxLineSize = 1 << 20

// Decoder reads events from a byte stream one at a time. It is not safe for
// concurrent use and cannot be rewound; open a new Decoder per connection.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: s}
}

// Next blocks until the next complete event is available. It returns io.EOF
// once the stream ends with no pending event.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}

	var (
		ev      Event
		data    []string
		started bool
	)
	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")

		if line == "" {
			if started {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Event = value
			started = true
		case "data":
			data = append(data, value)
			started = true
		case "id":
			ev.ID = value
			started = true
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				ev.Retry = n
			}
		}
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read event stream: %w", err)
	}
	if started {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}

// ErrNotFlushable is returned when the writer cannot stream.
var ErrNotFlushable = errors.New("streaming not supported by response writer")

// Flusher matches http.Flusher.
type Flusher interface {
	Flush()
}

// Encoder writes data-only events and flushes after each one.
type Encoder struct {
	w io.Writer
	f Flusher
}

// NewEncoder returns an encoder writing to w. If w implements Flusher, each
// event is flushed immediately.
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(Flusher)
	return &Encoder{w: w, f: f}
}

// Encode writes v as a "data: <json>" event.
func (e *Encoder) Encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if e.f != nil {
		e.f.Flush()
	}
	return nil
}
