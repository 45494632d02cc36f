package daemon

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dmitrymomot/photon/core/channel"
)

// ClientType identifies this library to the daemon in subscribe frames.
const ClientType = "photon"

// Frame types exchanged with the daemon.
const (
	FramePublish        = "publish"
	FrameSubscribe      = "subscribe"
	FrameUnsubscribe    = "unsubscribe"
	FrameResult         = "result"
	FrameError          = "error"
	FrameChannelMessage = "channel_message"
)

// Frame is one newline-delimited JSON object on the daemon socket.
type Frame struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Channel    string          `json:"channel,omitempty"`
	ClientType string          `json:"clientType,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Payload is the message body carried by publish and channel_message frames.
type Payload struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Source    string `json:"source,omitempty"`
}

var errMissingType = errors.New("frame has no type")

func newID() string {
	return uuid.NewString()
}

func publishFrame(msg channel.Message) (Frame, error) {
	body, err := json.Marshal(Payload{
		Event:     msg.Event,
		Data:      msg.Data,
		Timestamp: msg.Timestamp,
		Source:    msg.Source,
	})
	if err != nil {
		return Frame{}, fmt.Errorf("encode message: %w", err)
	}
	return Frame{Type: FramePublish, ID: newID(), Channel: msg.Channel, Message: body}, nil
}

func subscribeFrame(ch string) Frame {
	return Frame{Type: FrameSubscribe, ID: newID(), Channel: ch, ClientType: ClientType}
}

func unsubscribeFrame(ch string) Frame {
	return Frame{Type: FrameUnsubscribe, ID: newID(), Channel: ch}
}

// writeFrame encodes f followed by a newline.
func writeFrame(w io.Writer, f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// readLine returns the next non-empty line without its terminator. A partial
// trailing line is held by r until its newline arrives; at EOF it is discarded.
func readLine(r *bufio.Reader) ([]byte, error) {
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return line, nil
		}
	}
}

func decodeFrame(line []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, err
	}
	if f.Type == "" {
		return Frame{}, errMissingType
	}
	return f, nil
}

// message converts a channel_message frame to a channel.Message.
func (f Frame) message() (channel.Message, error) {
	var p Payload
	if len(f.Message) > 0 {
		if err := json.Unmarshal(f.Message, &p); err != nil {
			return channel.Message{}, err
		}
	}
	return channel.Message{
		Channel:   f.Channel,
		Event:     p.Event,
		Data:      p.Data,
		Timestamp: p.Timestamp,
		Source:    p.Source,
	}, nil
}
