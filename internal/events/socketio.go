package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Engine.IO v4 packet types, as the leading character of a text frame.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO packet types, following an Engine.IO message byte.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// FrameKind is the classified meaning of one Socket.IO text frame.
type FrameKind int

const (
	FrameIgnored FrameKind = iota
	FrameOpen
	FramePing
	FramePong
	FrameClose
	FrameConnect
	FrameDisconnect
	FrameConnectError
	FrameEvent
)

// Frame is a parsed Socket.IO text frame. Name and Data are set for FrameEvent.
type Frame struct {
	Kind FrameKind
	Name string
	Data json.RawMessage
}

// ParseSocketIO classifies a text frame for the default namespace.
func ParseSocketIO(text string) (Frame, error) {
	if text == "" {
		return Frame{}, errors.New("empty frame")
	}
	switch text[0] {
	case eioOpen:
		return Frame{Kind: FrameOpen, Data: json.RawMessage(text[1:])}, nil
	case eioClose:
		return Frame{Kind: FrameClose}, nil
	case eioPing:
		return Frame{Kind: FramePing}, nil
	case eioPong:
		return Frame{Kind: FramePong}, nil
	case eioMessage:
	default:
		return Frame{Kind: FrameIgnored}, nil
	}

	body := text[1:]
	if body == "" {
		return Frame{Kind: FrameIgnored}, nil
	}
	packet, rest := body[0], body[1:]
	rest = stripNamespace(rest)
	switch packet {
	case sioConnect:
		return Frame{Kind: FrameConnect, Data: json.RawMessage(rest)}, nil
	case sioDisconnect:
		return Frame{Kind: FrameDisconnect}, nil
	case sioConnectError:
		return Frame{Kind: FrameConnectError, Data: json.RawMessage(rest)}, nil
	case sioEvent:
	default:
		return Frame{Kind: FrameIgnored}, nil
	}

	// An ack id may precede the payload array.
	rest = strings.TrimLeft(rest, "0123456789")
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &parts); err != nil {
		return Frame{}, fmt.Errorf("decode event frame: %w", err)
	}
	if len(parts) == 0 {
		return Frame{}, errors.New("decode event frame: empty payload")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return Frame{}, fmt.Errorf("decode event name: %w", err)
	}
	frame := Frame{Kind: FrameEvent, Name: name}
	if len(parts) > 1 {
		frame.Data = parts[1]
	}
	return frame, nil
}

// stripNamespace removes a "/nsp," prefix so only the default namespace shape remains.
func stripNamespace(s string) string {
	if !strings.HasPrefix(s, "/") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Socket.IO frames the client sends.
const (
	socketIOConnectFrame = "40"
	socketIOPongFrame    = "3"
)

// EncodeSocketIOEvent renders an event frame; used by the fake service in tests
// and by tooling that replays captured sessions.
func EncodeSocketIOEvent(name string, payload any) (string, error) {
	data, err := json.Marshal([]any{name, payload})
	if err != nil {
		return "", err
	}
	return "42" + string(data), nil
}
