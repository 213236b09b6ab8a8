package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"subpilot/internal/events"
)

// SocketIOPath is where the fake serves its Socket.IO endpoint.
const SocketIOPath = "/socket.io/"

// FakeService imitates the transcription service: an upload endpoint, result
// lookups, and a Socket.IO channel that reports progress and completion for
// each accepted upload. Events queue until a channel client connects.
type FakeService struct {
	t      testing.TB
	server *httptest.Server

	// EventDelay separates the upload acknowledgement from its events.
	EventDelay time.Duration

	mu       sync.Mutex
	seq      int
	uploads  []Upload
	results  map[string]events.ReadyPayload
	failures map[string]string
	rejects  map[string]string
	infoDown bool
	conns    []*fakeConn
	pending  []string
}

// Upload records one received submission.
type Upload struct {
	SessionID string
	Filename  string
	Fields    map[string]string
}

type fakeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *fakeConn) write(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// NewFakeService starts the fake and registers cleanup.
func NewFakeService(t testing.TB) *FakeService {
	t.Helper()
	svc := &FakeService{
		t:          t,
		EventDelay: 50 * time.Millisecond,
		results:    make(map[string]events.ReadyPayload),
		failures:   make(map[string]string),
		rejects:    make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", svc.handleUpload)
	mux.HandleFunc("GET /api/session/{id}", svc.handleSession)
	mux.HandleFunc("GET /api/download/{format}/{id}", svc.handleDownload)
	mux.HandleFunc("GET /api/system-info", svc.handleSystemInfo)
	mux.HandleFunc(SocketIOPath, svc.handleSocket)
	svc.server = httptest.NewServer(mux)
	t.Cleanup(svc.Close)
	return svc
}

// URL returns the HTTP base URL.
func (s *FakeService) URL() string { return s.server.URL }

// Close shuts the fake down.
func (s *FakeService) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.conn.Close()
	}
	s.server.Close()
}

// FailProcessing makes uploads of filename end with an error event.
func (s *FakeService) FailProcessing(filename, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[filename] = message
}

// RejectUpload makes uploads of filename fail with an {error} body.
func (s *FakeService) RejectUpload(filename, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[filename] = message
}

// FailSystemInfo makes the capabilities endpoint answer 500.
func (s *FakeService) FailSystemInfo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoDown = true
}

// AddResult registers a finished session for lookup and download.
func (s *FakeService) AddResult(payload events.ReadyPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[payload.SessionID] = payload
}

// Uploads returns the submissions received so far.
func (s *FakeService) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// ReadyPayloadFor builds the canned result the fake emits for an upload.
func ReadyPayloadFor(sessionID, filename string) events.ReadyPayload {
	elapsed := 1.5
	return events.ReadyPayload{
		SessionID: sessionID,
		Subtitles: map[string]string{
			"srt": "1\n00:00:00,000 --> 00:00:01,000\nHello there\n",
			"vtt": "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nHello there\n",
		},
		Language:       "en",
		Segments:       2,
		ModelUsed:      "base",
		Filename:       filename,
		ProcessingTime: &elapsed,
	}
}

func (s *FakeService) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": "No file provided"})
		return
	}
	file.Close()

	fields := make(map[string]string)
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	s.mu.Lock()
	if msg, ok := s.rejects[header.Filename]; ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"error": msg})
		return
	}
	s.seq++
	id := fmt.Sprintf("sess-%d", s.seq)
	s.uploads = append(s.uploads, Upload{SessionID: id, Filename: header.Filename, Fields: fields})
	failure, fails := s.failures[header.Filename]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"message":    "File uploaded successfully. Processing...",
		"options":    map[string]any{
			"model":    fields["model"],
			"language": fields["language"],
			"vad":      fields["vad"] == "true",
			"enhance":  fields["enhance"] == "true",
		},
	})

	go func() {
		time.Sleep(s.EventDelay)
		s.broadcast(events.WireProgress, map[string]any{"session_id": id, "progress": 50, "message": "Generating subtitles..."})
		if fails {
			s.broadcast(events.WireError, map[string]any{"session_id": id, "message": failure})
			return
		}
		payload := ReadyPayloadFor(id, header.Filename)
		s.AddResult(payload)
		s.broadcast(events.WireReady, payload)
	}()
}

func (s *FakeService) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	payload, ok := s.results[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *FakeService) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	payload, ok := s.results[r.PathValue("id")]
	s.mu.Unlock()
	format := r.PathValue("format")
	content, has := payload.Subtitles[format]
	if !ok || !has {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}
	stem := strings.TrimSuffix(payload.Filename, "."+lastExt(payload.Filename))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, stem, format))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func (s *FakeService) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	down := s.infoDown
	s.mu.Unlock()
	if down {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "model catalogue unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cuda_available": false,
		"device":         "cpu",
		"whisper_models": map[string]any{
			"base":   map[string]string{"size": "74 MB", "speed": "Fast", "accuracy": "Good", "vram": "~1 GB"},
			"small":  map[string]string{"size": "244 MB", "speed": "Medium", "accuracy": "Better", "vram": "~2 GB"},
			"medium": map[string]string{"size": "769 MB", "speed": "Slow", "accuracy": "Very Good", "vram": "~5 GB"},
		},
		"supported_languages": map[string]string{"auto": "Auto Detect", "en": "English", "de": "German"},
	})
}

func (s *FakeService) handleSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fc := &fakeConn{conn: conn}
	if err := fc.write(`0{"sid":"fake","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`); err != nil {
		conn.Close()
		return
	}
	if _, msg, err := conn.ReadMessage(); err != nil || string(msg) != "40" {
		conn.Close()
		return
	}
	if err := fc.write(`40{"sid":"fake-ns"}`); err != nil {
		conn.Close()
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, fc)
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, frame := range pending {
		_ = fc.write(frame)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.drop(fc)
			return
		}
	}
}

func (s *FakeService) broadcast(name string, payload any) {
	frame, err := events.EncodeSocketIOEvent(name, payload)
	if err != nil {
		s.t.Errorf("encode %s: %v", name, err)
		return
	}
	s.mu.Lock()
	conns := append([]*fakeConn(nil), s.conns...)
	if len(conns) == 0 {
		s.pending = append(s.pending, frame)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.write(frame)
	}
}

func (s *FakeService) drop(target *fakeConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == target {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			break
		}
	}
	target.conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func lastExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return ""
}
