package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownEvent is returned for well-formed frames naming an event this
// client does not consume.
var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the JSON framing used by the NATS and Redis transports and by
// the websocket transport in json mode.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode maps a named wire event and its JSON body to an Event.
func Decode(name string, data []byte, at time.Time) (Event, error) {
	name = strings.TrimSpace(name)
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch name {
	case WireProgress:
		var body progressData
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", name, err)
		}
		return Event{
			Kind:       KindProgress,
			SessionID:  body.SessionID,
			Percent:    body.Progress,
			Message:    body.Message,
			ReceivedAt: at,
		}, nil
	case WireReady:
		var body ReadyPayload
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", name, err)
		}
		return Event{
			Kind:       KindReady,
			SessionID:  body.SessionID,
			Ready:      &body,
			ReceivedAt: at,
		}, nil
	case WireError:
		var body errorData
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", name, err)
		}
		return Event{
			Kind:       KindFailed,
			SessionID:  body.SessionID,
			Reason:     body.Message,
			ReceivedAt: at,
		}, nil
	case WireConnected:
		var body connectedData
		_ = json.Unmarshal(data, &body)
		return Connected(body.Message, at), nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

// DecodeEnvelope decodes a {"event":..., "data":...} document.
func DecodeEnvelope(raw []byte, at time.Time) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Event{}, errors.New("decode envelope: missing event name")
	}
	return Decode(env.Event, env.Data, at)
}

// EncodeEnvelope is the inverse of DecodeEnvelope for a named payload.
func EncodeEnvelope(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}
