package channel

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultEvent is the event tag assigned to messages published without one.
const DefaultEvent = "message"

// Message is the unit of communication shared by every transport.
type Message struct {
	Channel   string `json:"channel"`             // Logical topic, e.g. "board:my-board"
	Event     string `json:"event"`               // Application-level event tag
	Data      any    `json:"data,omitempty"`      // Payload, any JSON-serializable value
	Timestamp int64  `json:"timestamp,omitempty"` // Epoch milliseconds, set once at publish
	Source    string `json:"source,omitempty"`    // Origin identifier (process name, instance id)
}

// Prepare returns a copy of m ready to leave a publish path: the event defaults
// to DefaultEvent, a missing timestamp is set to the current time and a missing
// source is filled with source. Fields already set are never changed.
func (m Message) Prepare(source string) Message {
	if m.Event == "" {
		m.Event = DefaultEvent
	}
	if m.Timestamp == 0 {
		m.Timestamp = NowMillis()
	}
	if m.Source == "" {
		m.Source = source
	}
	return m
}

// Time returns the message timestamp as time.Time, or the zero time if unset.
func (m Message) Time() time.Time {
	if m.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp)
}

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// DefaultSource returns the executable base name, used as the message source
// when neither the caller nor the transport configuration supplies one.
func DefaultSource() string {
	if len(os.Args) == 0 || os.Args[0] == "" {
		return "photon"
	}
	return filepath.Base(os.Args[0])
}

// DecodeData converts the message payload into T.
//
// Payloads published in-process keep their original type; payloads that crossed
// a wire arrive as decoded JSON (maps, slices, numbers) or raw bytes. All three
// forms are accepted.
func DecodeData[T any](msg Message) (T, error) {
	var zero T

	switch v := msg.Data.(type) {
	case T:
		return v, nil
	case nil:
		return zero, fmt.Errorf("channel %q: message has no data", msg.Channel)
	case []byte:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("channel %q: failed to unmarshal data: %w", msg.Channel, err)
		}
		return out, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, fmt.Errorf("channel %q: failed to unmarshal data: %w", msg.Channel, err)
		}
		return out, nil
	}

	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return zero, fmt.Errorf("channel %q: failed to marshal data: %w", msg.Channel, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("channel %q: failed to unmarshal data: %w", msg.Channel, err)
	}
	return out, nil
}
