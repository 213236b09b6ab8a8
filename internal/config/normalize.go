package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeService()
	c.normalizeChannel()
	c.normalizeSubmission()
	c.normalizeLimits()
	c.normalizeSession()
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.normalizeWatch()
	c.normalizeNotifications()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeService() {
	c.Service.BaseURL = strings.TrimSpace(c.Service.BaseURL)
	if value, ok := os.LookupEnv("SUBPILOT_SERVICE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Service.BaseURL = strings.TrimSpace(value)
	}
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = defaultServiceURL
	}
	c.Service.BaseURL = strings.TrimRight(c.Service.BaseURL, "/")
	if c.Service.RequestTimeout <= 0 {
		c.Service.RequestTimeout = defaultRequestTimeout
	}
	if c.Service.UploadTimeout < 0 {
		c.Service.UploadTimeout = 0
	}
}

func (c *Config) normalizeChannel() {
	c.Channel.Transport = strings.ToLower(strings.TrimSpace(c.Channel.Transport))
	if c.Channel.Transport == "" {
		c.Channel.Transport = defaultTransport
	}
	c.Channel.URL = strings.TrimSpace(c.Channel.URL)
	c.Channel.Path = strings.TrimSpace(c.Channel.Path)
	if c.Channel.Path == "" {
		c.Channel.Path = defaultSocketPath
	}
	c.Channel.Framing = strings.ToLower(strings.TrimSpace(c.Channel.Framing))
	if c.Channel.Framing == "" {
		c.Channel.Framing = defaultFraming
	}
	if c.Channel.ReconnectInterval < 0 {
		c.Channel.ReconnectInterval = 0
	}
	c.Channel.NATSSubject = strings.TrimSpace(c.Channel.NATSSubject)
	if c.Channel.NATSSubject == "" {
		c.Channel.NATSSubject = defaultNATSSubject
	}
	c.Channel.RedisChannel = strings.TrimSpace(c.Channel.RedisChannel)
	if c.Channel.RedisChannel == "" {
		c.Channel.RedisChannel = defaultRedisChannel
	}
	if c.Channel.RedisPassword == "" {
		if value, ok := os.LookupEnv("SUBPILOT_REDIS_PASSWORD"); ok {
			c.Channel.RedisPassword = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeSubmission() {
	c.Submission.Model = strings.ToLower(strings.TrimSpace(c.Submission.Model))
	if c.Submission.Model == "" {
		c.Submission.Model = defaultModel
	}
	c.Submission.Language = strings.ToLower(strings.TrimSpace(c.Submission.Language))
	if c.Submission.Language == "" {
		c.Submission.Language = defaultLanguage
	}
}

func (c *Config) normalizeLimits() {
	if c.Limits.MaxFileGiB <= 0 {
		c.Limits.MaxFileGiB = defaultMaxFileGiB
	}
	c.Limits.MIMETypes = normalizeList(c.Limits.MIMETypes, defaultMIMETypes, func(v string) string { return v })
	c.Limits.Extensions = normalizeList(c.Limits.Extensions, defaultExtensions, func(v string) string {
		if !strings.HasPrefix(v, ".") {
			return "." + v
		}
		return v
	})
}

func (c *Config) normalizeSession() {
	if c.Session.TimeoutSeconds < 0 {
		c.Session.TimeoutSeconds = 0
	}
	if c.Session.AdvanceDelayMilliseconds < 0 {
		c.Session.AdvanceDelayMilliseconds = 0
	}
}

func (c *Config) normalizeOutput() error {
	var err error
	if c.Output.Dir, err = expandPath(strings.TrimSpace(c.Output.Dir)); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	c.Output.Formats = normalizeList(c.Output.Formats, defaultFormats, func(v string) string {
		return strings.TrimPrefix(v, ".")
	})
	return nil
}

func (c *Config) normalizeWatch() {
	if c.Watch.DebounceMilliseconds <= 0 {
		c.Watch.DebounceMilliseconds = defaultWatchDebounce
	}
	if c.Watch.QueueSize <= 0 {
		c.Watch.QueueSize = defaultWatchQueueSize
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SUBPILOT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeList lower-cases, trims, and de-duplicates values, falling back to
// defaults when nothing usable remains.
func normalizeList(values, fallback []string, fix func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		normalized = fix(normalized)
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
