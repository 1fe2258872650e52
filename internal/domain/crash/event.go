package crash

import (
	"fmt"
	"strings"
	"time"
)

// Exception identifies what was thrown: a type plus its rendered value.
type Exception struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Breadcrumb is one trail entry recorded by the SDK before the crash.
type Breadcrumb struct {
	Timestamp string `json:"timestamp,omitempty"`
	Category  string `json:"category,omitempty"`
	Message   string `json:"message,omitempty"`
	Level     string `json:"level,omitempty"`
}

// Input is the wire shape a client SDK submits for one crash. It carries
// either an exception or a bare message, an optional raw stacktrace, and
// free-form context blobs that are persisted opaquely.
type Input struct {
	Platform    string            `json:"platform"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Level       string            `json:"level,omitempty"`
	Exception   *Exception        `json:"exception,omitempty"`
	Message     string            `json:"message,omitempty"`
	Stacktrace  *Stacktrace       `json:"stacktrace,omitempty"`
	Release     string            `json:"release,omitempty"`
	Environment string            `json:"environment,omitempty"`
	User        map[string]any    `json:"user,omitempty"`
	Device      map[string]any    `json:"device,omitempty"`
	OS          map[string]any    `json:"os,omitempty"`
	Browser     map[string]any    `json:"browser,omitempty"`
	Request     map[string]any    `json:"request,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Breadcrumbs []Breadcrumb      `json:"breadcrumbs,omitempty"`
}

// Validate rejects inputs that cannot become an event. Nothing is persisted
// for an input that fails here.
func (in *Input) Validate() error {
	if in == nil {
		return ErrEmptyEvent
	}
	if _, err := ParsePlatform(in.Platform); err != nil {
		return err
	}
	if _, err := ParseLevel(in.Level); err != nil {
		return err
	}

	hasException := in.Exception != nil && strings.TrimSpace(in.Exception.Type) != ""
	hasMessage := strings.TrimSpace(in.Message) != ""
	if !hasException && !hasMessage {
		return ErrEmptyEvent
	}

	if ts := strings.TrimSpace(in.Timestamp); ts != "" {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			return fmt.Errorf("%w: %q", ErrBadTimestamp, in.Timestamp)
		}
	}
	return nil
}

// ExceptionType returns the thrown type, or "" for message-only events.
func (in *Input) ExceptionType() string {
	if in == nil || in.Exception == nil {
		return ""
	}
	return strings.TrimSpace(in.Exception.Type)
}

// ExceptionValue returns the rendered value, falling back to the message.
func (in *Input) ExceptionValue() string {
	if in == nil {
		return ""
	}
	if in.Exception != nil && strings.TrimSpace(in.Exception.Value) != "" {
		return strings.TrimSpace(in.Exception.Value)
	}
	return strings.TrimSpace(in.Message)
}

// Title renders the one-line issue title: "Type: value" for exceptions,
// else the first line of the message.
func (in *Input) Title() string {
	if t := in.ExceptionType(); t != "" {
		if v := in.ExceptionValue(); v != "" {
			return t + ": " + firstLine(v)
		}
		return t
	}
	return firstLine(strings.TrimSpace(in.Message))
}

// RawStacktrace returns the reported trace, empty when none was sent.
func (in *Input) RawStacktrace() Stacktrace {
	if in == nil || in.Stacktrace == nil {
		return Stacktrace{}
	}
	return *in.Stacktrace
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
