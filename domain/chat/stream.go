package chat

// Client-facing stream events. Each is written as one "data:" line.

// TextEvent carries an incremental piece of the answer.
type TextEvent struct {
	Text string `json:"text"`
}

// DoneEvent terminates a successful stream. Content is set only when output
// moderation rewrote the accumulated text.
type DoneEvent struct {
	Done     bool   `json:"done"`
	Usage    Usage  `json:"usage"`
	Model    string `json:"model"`
	Filtered bool   `json:"filtered,omitempty"`
	Content  string `json:"content,omitempty"`
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Error string `json:"error"`
}
