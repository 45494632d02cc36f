package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultEventType is the type of frames that carry no "event:" field.
const DefaultEventType = "message"

// ErrEventTooLarge is returned when a frame exceeds the decoder size limit.
var ErrEventTooLarge = errors.New("sse: event exceeds maximum size")

// Event is one Server-Sent Events frame.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry int // reconnection time in milliseconds, 0 if absent
}

// Type returns the event type, defaulting to DefaultEventType.
func (e Event) Type() string {
	if e.Event == "" {
		return DefaultEventType
	}
	return e.Event
}

// Decoder reads events from a stream.
type Decoder struct {
	r       *bufio.Reader
	maxSize int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxEventSize limits the accumulated size of one frame in bytes.
// Zero disables the limit.
func WithMaxEventSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n >= 0 {
			d.maxSize = n
		}
	}
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: bufio.NewReader(r)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next complete frame carrying data. It returns io.EOF when
// the stream ends; a frame not terminated by a blank line is discarded.
func (d *Decoder) Next() (Event, error) {
	var (
		ev      Event
		data    strings.Builder
		hasData bool
		size    int
	)

	for {
		limit := -1
		if d.maxSize > 0 {
			limit = d.maxSize - size
		}

		line, err := d.readLine(limit)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		size += len(line)

		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		if line == "" {
			if hasData {
				ev.Data = data.String()
				return ev, nil
			}
			ev, size = Event{}, 0
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Event = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			ev.ID = value
		case "retry":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				ev.Retry = n
			}
		}
	}
}

// readLine returns the next line with its terminator. A negative limit means
// unbounded; otherwise reading stops with ErrEventTooLarge as soon as the
// line grows past limit bytes, so a peer cannot make the decoder buffer an
// endless line.
func (d *Decoder) readLine(limit int) (string, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if limit >= 0 && len(line)+len(chunk) > limit {
			return "", ErrEventTooLarge
		}
		line = append(line, chunk...)

		switch {
		case err == nil:
			return string(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return "", err
		}
	}
}

// WriteEvent writes ev in wire format. Multi-line data is split into several
// "data:" lines.
func WriteEvent(w io.Writer, ev Event) error {
	if ev.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Event); err != nil {
			return err
		}
	}
	if ev.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.ID); err != nil {
			return err
		}
	}
	if ev.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", ev.Retry); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteComment writes a comment line, typically used as a keep-alive.
func WriteComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}
