package events

import (
	"encoding/json"
	"time"
)

// Kind classifies an inbound event.
type Kind string

const (
	KindConnected    Kind = "connected"
	KindDisconnected Kind = "disconnected"
	KindProgress     Kind = "progress"
	KindReady        Kind = "ready"
	KindFailed       Kind = "failed"
)

// Wire event names emitted by the service.
const (
	WireConnected = "connected"
	WireProgress  = "progress"
	WireReady     = "subtitles_ready"
	WireError     = "error"
)

// Lifecycle reports whether the event describes the channel rather than a session.
func (k Kind) Lifecycle() bool {
	return k == KindConnected || k == KindDisconnected
}

// Event is one decoded notification from the service.
type Event struct {
	Kind       Kind
	SessionID  string
	Percent    float64
	Message    string
	Ready      *ReadyPayload
	Reason     string
	ReceivedAt time.Time
}

// ReadyPayload is the terminal success payload. The same document is served
// by GET /api/session/<id>.
type ReadyPayload struct {
	SessionID       string            `json:"session_id,omitempty"`
	Subtitles       map[string]string `json:"subtitles"`
	Language        string            `json:"language,omitempty"`
	Segments        int               `json:"segments"`
	ModelUsed       string            `json:"model_used,omitempty"`
	Filename        string            `json:"filename,omitempty"`
	ProcessingTime  *float64          `json:"processing_time,omitempty"`
	OptionsUsed     map[string]any    `json:"options_used,omitempty"`
	WhisperSegments json.RawMessage   `json:"whisper_segments,omitempty"`
	VideoURL        string            `json:"video_url,omitempty"`
}

type progressData struct {
	SessionID string  `json:"session_id"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message"`
}

type errorData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type connectedData struct {
	Message string `json:"message"`
}

// Connected builds a channel lifecycle event.
func Connected(message string, at time.Time) Event {
	return Event{Kind: KindConnected, Message: message, ReceivedAt: at}
}

// Disconnected builds a channel lifecycle event.
func Disconnected(message string, at time.Time) Event {
	return Event{Kind: KindDisconnected, Message: message, ReceivedAt: at}
}
