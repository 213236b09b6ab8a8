package subtitler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"subpilot/internal/events"
	"subpilot/internal/services"
)

const maxDownloadBytes = 64 << 20

// Session fetches the stored result document for a finished session.
func (c *Client) Session(ctx context.Context, sessionID string) (events.ReadyPayload, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return events.ReadyPayload{}, services.Wrap(services.ErrValidation, "subtitler", "session", "session id required", nil)
	}
	ctx = services.WithSessionID(ctx, sessionID)
	var payload events.ReadyPayload
	if err := c.getJSON(ctx, "session", &payload, "api", "session", sessionID); err != nil {
		return events.ReadyPayload{}, err
	}
	if payload.SessionID == "" {
		payload.SessionID = sessionID
	}
	return payload, nil
}

// Download is one subtitle file served by the service.
type Download struct {
	Filename string
	Content  []byte
}

// Download fetches one rendered subtitle format for a session.
func (c *Client) Download(ctx context.Context, format, sessionID string) (Download, error) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	sessionID = strings.TrimSpace(sessionID)
	if format == "" || sessionID == "" {
		return Download{}, services.Wrap(services.ErrValidation, "subtitler", "download", "format and session id required", nil)
	}
	resp, err := c.get(services.WithSessionID(ctx, sessionID), "download", "api", "download", format, sessionID)
	if err != nil {
		return Download{}, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return Download{}, services.Wrap(services.ErrTransport, "subtitler", "download", "read body", err)
	}
	if len(content) > maxDownloadBytes {
		return Download{}, services.Wrap(services.ErrTransport, "subtitler", "download", fmt.Sprintf("response exceeds %d bytes", maxDownloadBytes), nil)
	}
	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	if filename == "" {
		filename = fmt.Sprintf("subtitles.%s", format)
	}
	return Download{Filename: filename, Content: content}, nil
}
