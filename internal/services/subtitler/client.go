package subtitler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"subpilot/internal/logging"
	"subpilot/internal/media"
	"subpilot/internal/services"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	userAgent          = "subpilot/0.1"
	maxErrorBody       = 4096
)

// Config captures how to reach the service.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// UploadTimeout bounds a whole upload; zero leaves it to ctx.
	UploadTimeout time.Duration
}

// Client talks to the subtitle service HTTP API.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	uploadClient *http.Client
	logger       *slog.Logger
	newID        func() string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides both the request and upload HTTP clients.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
			c.uploadClient = client
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestIDs overrides request id generation (useful for tests).
func WithRequestIDs(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient constructs a client for cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "subtitler", "parse base url", fmt.Sprintf("invalid service url %q", cfg.BaseURL), err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	c := &Client{
		baseURL:      base,
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{Timeout: cfg.UploadTimeout},
		logger:       logging.NewNop(),
		newID:        func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "subtitler")
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Ack is the service's acceptance of an upload.
type Ack struct {
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	Options   SubmissionOptions `json:"options"`
}

// ServerError is a rejection reported by the service, either as an {error}
// body or a non-2xx status. It unwraps to services.ErrSubmission.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service returned http %d", e.StatusCode)
	}
	return e.Message
}

func (e *ServerError) Unwrap() error {
	return services.ErrSubmission
}

type errorBody struct {
	Error string `json:"error"`
}

// Submit uploads candidate with options and returns the acknowledgement. The
// file is streamed from disk.
func (c *Client) Submit(ctx context.Context, candidate media.Candidate, options SubmissionOptions) (Ack, error) {
	if candidate.Path == "" {
		return Ack{}, services.Wrap(services.ErrSubmission, "subtitler", "submit", "candidate has no path", nil)
	}
	file, err := os.Open(candidate.Path)
	if err != nil {
		return Ack{}, services.Wrap(services.ErrSubmission, "subtitler", "open upload", candidate.DisplayName(), err)
	}

	requestID := c.newID()
	ctx = services.WithRequestID(services.WithFile(ctx, candidate.DisplayName()), requestID)
	logger := logging.WithContext(ctx, c.logger)

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		defer file.Close()
		writer.CloseWithError(writeUploadForm(form, file, candidate, options))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("api", "upload"), body)
	if err != nil {
		body.CloseWithError(err)
		return Ack{}, services.Wrap(services.ErrSubmission, "subtitler", "build request", "", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	logger.Debug("upload started",
		logging.Int64("size_bytes", candidate.Size),
		logging.String("model", options.Model),
		logging.String("language", options.Language),
	)
	resp, err := c.uploadClient.Do(req)
	if err != nil {
		body.CloseWithError(err)
		return Ack{}, services.Wrap(services.ErrTransport, "subtitler", "upload", candidate.DisplayName(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Ack{}, services.Wrap(services.ErrTransport, "subtitler", "read upload response", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Ack{}, serverError(resp.StatusCode, payload)
	}

	var envelope struct {
		Ack
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Ack{}, services.Wrap(services.ErrSubmission, "subtitler", "decode upload response", "", err)
	}
	if envelope.Error != "" {
		return Ack{}, &ServerError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}
	if strings.TrimSpace(envelope.SessionID) == "" {
		return Ack{}, services.Wrap(services.ErrSubmission, "subtitler", "decode upload response", "acknowledgement missing session_id", nil)
	}
	logger.Debug("upload acknowledged",
		logging.SessionID(envelope.SessionID),
		logging.Duration("elapsed", time.Since(start)),
	)
	return envelope.Ack, nil
}

func writeUploadForm(form *multipart.Writer, file io.Reader, candidate media.Candidate, options SubmissionOptions) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(candidate.DisplayName())))
	contentType := candidate.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("stream %s: %w", candidate.DisplayName(), err)
	}
	fields := [][2]string{
		{"model", options.Model},
		{"language", options.Language},
		{"vad", formBool(options.VAD)},
		{"enhance", formBool(options.Enhance)},
	}
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return form.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func serverError(status int, payload []byte) error {
	var body errorBody
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		return &ServerError{StatusCode: status, Message: body.Error}
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" || strings.HasPrefix(text, "<") {
		text = http.StatusText(status)
	}
	return &ServerError{StatusCode: status, Message: fmt.Sprintf("service returned http %d: %s", status, text)}
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.baseURL
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	u.RawPath = ""
	return u.String()
}

// getJSON issues a GET and decodes a JSON body into out.
func (c *Client) getJSON(ctx context.Context, operation string, out any, parts ...string) error {
	resp, err := c.get(ctx, operation, parts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransport, "subtitler", operation, "decode response", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, operation string, parts ...string) (*http.Response, error) {
	requestID := c.newID()
	ctx = services.WithRequestID(ctx, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(parts...), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "subtitler", operation, "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "subtitler", operation, "", err)
	}
	logging.WithContext(ctx, c.logger).Debug("service response",
		logging.String("operation", operation),
		logging.Int("status", resp.StatusCode),
	)
	if resp.StatusCode == http.StatusNotFound {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := "not found"
		var body errorBody
		if json.Unmarshal(payload, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return nil, services.Wrap(services.ErrNotFound, "subtitler", operation, msg, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, services.Wrap(services.ErrTransport, "subtitler", operation, serverError(resp.StatusCode, payload).Error(), nil)
	}
	return resp, nil
}
