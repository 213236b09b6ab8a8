package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subpilot/internal/config"
)

const userAgent = "subpilot/0.1"

// Event names a notification kind.
type Event string

const (
	EventSubtitlesReady   Event = "subtitles_ready"
	EventSubmissionFailed Event = "submission_failed"
	EventBatchCompleted   Event = "batch_completed"
	EventTest             Event = "test"
)

// Payload carries event fields by name.
type Payload map[string]any

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) number(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	file := payload.text("file")
	if file == "" {
		file = "unknown file"
	}
	switch event {
	case EventSubtitlesReady:
		body := fmt.Sprintf("✅ Subtitles ready: %s", file)
		var details []string
		if segments := payload.number("segments"); segments > 0 {
			details = append(details, fmt.Sprintf("%d segments", segments))
		}
		if lang := payload.text("language"); lang != "" {
			details = append(details, strings.ToUpper(lang))
		}
		if elapsed := payload.text("elapsed"); elapsed != "" && elapsed != "N/A" {
			details = append(details, elapsed)
		}
		if len(details) > 0 {
			body = fmt.Sprintf("%s (%s)", body, strings.Join(details, ", "))
		}
		return message{
			title: "Subpilot - Subtitles Ready",
			body:  body,
			tags:  []string{"subpilot", "subtitles", "ready"},
		}, true
	case EventSubmissionFailed:
		reason := payload.text("reason")
		if reason == "" {
			reason = "unknown error"
		}
		return message{
			title:    "Subpilot - Failed",
			body:     fmt.Sprintf("❌ %s: %s", file, reason),
			tags:     []string{"subpilot", "error", payloadKind(payload)},
			priority: "high",
		}, true
	case EventBatchCompleted:
		total, failed := payload.number("total"), payload.number("failed")
		title := "Subpilot - Batch Complete"
		body := fmt.Sprintf("Batch complete: %d files processed", total)
		if failed > 0 {
			title = "Subpilot - Batch Complete (with errors)"
			body = fmt.Sprintf("Batch complete: %d succeeded, %d failed", payload.number("succeeded"), failed)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"subpilot", "batch", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "Subpilot - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"subpilot", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadKind(p Payload) string {
	if kind := p.text("kind"); kind != "" {
		return kind
	}
	return "alert"
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
