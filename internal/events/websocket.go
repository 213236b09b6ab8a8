package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"subpilot/internal/config"
	"subpilot/internal/logging"
	"subpilot/internal/services"
)

// WebSocketSource reads events from the service's Socket.IO endpoint, or from
// a plain websocket emitting JSON envelopes.
type WebSocketSource struct {
	endpoint  string
	framing   string
	reconnect time.Duration
	dialer    *websocket.Dialer
	header    http.Header
	logger    *slog.Logger
}

// WebSocketOption customizes a WebSocketSource.
type WebSocketOption func(*WebSocketSource)

// WithFraming selects socketio (default) or json framing.
func WithFraming(framing string) WebSocketOption {
	return func(s *WebSocketSource) {
		if framing != "" {
			s.framing = framing
		}
	}
}

// WithReconnect re-dials after a dropped connection; zero disables reconnects.
func WithReconnect(interval time.Duration) WebSocketOption {
	return func(s *WebSocketSource) {
		s.reconnect = interval
	}
}

// WithLogger sets the source logger.
func WithLogger(logger *slog.Logger) WebSocketOption {
	return func(s *WebSocketSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(dialer *websocket.Dialer) WebSocketOption {
	return func(s *WebSocketSource) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}

// WithHeader adds request headers to the handshake.
func WithHeader(header http.Header) WebSocketOption {
	return func(s *WebSocketSource) {
		s.header = header
	}
}

// NewWebSocketSource constructs a websocket source for endpoint.
func NewWebSocketSource(endpoint string, opts ...WebSocketOption) *WebSocketSource {
	s := &WebSocketSource{
		endpoint: endpoint,
		framing:  config.FramingSocketIO,
		dialer:   websocket.DefaultDialer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the dialed URL.
func (s *WebSocketSource) Endpoint() string {
	return s.endpoint
}

// Run implements Source.
func (s *WebSocketSource) Run(ctx context.Context, out chan<- Event) error {
	for {
		err := s.runOnce(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		reason := "connection closed"
		if err != nil {
			reason = err.Error()
		}
		if !emit(ctx, out, Disconnected(reason, time.Now())) {
			return nil
		}
		if s.reconnect <= 0 {
			if err != nil {
				return services.Wrap(services.ErrTransport, "events", "websocket", "event channel closed", err)
			}
			return nil
		}
		logging.WarnWithContext(s.logger, "event channel dropped; reconnecting", "channel_reconnect",
			logging.String("endpoint", s.endpoint),
			logging.Duration("retry_in", s.reconnect),
			logging.String(logging.FieldErrorHint, "check that the subtitle service is running"),
			logging.String(logging.FieldImpact, "progress updates pause until the channel returns"),
		)
		if !sleepCtx(ctx, s.reconnect) {
			return nil
		}
	}
}

func (s *WebSocketSource) runOnce(ctx context.Context, out chan<- Event) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint, s.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.endpoint, err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }
	defer closeConn()
	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	s.logger.Debug("event channel dialed", logging.String("endpoint", s.endpoint), logging.String("framing", s.framing))

	if s.framing == config.FramingJSON {
		if !emit(ctx, out, Connected("channel connected", time.Now())) {
			return nil
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return readError(err)
			}
			if !deliverEnvelope(ctx, out, s.logger, data) {
				return nil
			}
		}
	}

	var writeMu sync.Mutex
	write := func(frame string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, []byte(frame))
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return readError(err)
		}
		frame, err := ParseSocketIO(string(data))
		if err != nil {
			s.logger.Debug("skipping malformed frame", logging.Error(err))
			continue
		}
		switch frame.Kind {
		case FrameOpen:
			if err := write(socketIOConnectFrame); err != nil {
				return fmt.Errorf("namespace connect: %w", err)
			}
		case FramePing:
			if err := write(socketIOPongFrame); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
		case FrameConnect:
			if !emit(ctx, out, Connected("channel connected", time.Now())) {
				return nil
			}
		case FrameConnectError:
			return fmt.Errorf("namespace connect rejected: %s", string(frame.Data))
		case FrameClose, FrameDisconnect:
			return nil
		case FrameEvent:
			ev, err := Decode(frame.Name, frame.Data, time.Now())
			if err != nil {
				s.logger.Debug("skipping channel event",
					logging.String("event", frame.Name),
					logging.Error(err),
				)
				continue
			}
			if !emit(ctx, out, ev) {
				return nil
			}
		}
	}
}

func readError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// WebSocketURL derives the channel endpoint. An explicit channel URL wins;
// otherwise the service base URL is rewritten to ws(s) and joined with path.
// Socket.IO framing adds the Engine.IO v4 query parameters.
func WebSocketURL(baseURL, channelURL, path, framing string) (string, error) {
	raw := strings.TrimSpace(channelURL)
	if raw == "" {
		raw = strings.TrimSpace(baseURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	if strings.TrimSpace(channelURL) == "" {
		if path == "" {
			path = "/socket.io/"
		}
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if framing != config.FramingJSON {
		q := u.Query()
		if q.Get("EIO") == "" {
			q.Set("EIO", "4")
		}
		q.Set("transport", "websocket")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
