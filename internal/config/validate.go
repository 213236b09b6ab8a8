package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateChannel(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateService() error {
	parsed, err := url.Parse(c.Service.BaseURL)
	if err != nil {
		return fmt.Errorf("service.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("service.base_url must use http or https, got %q", c.Service.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("service.base_url must include a host, got %q", c.Service.BaseURL)
	}
	if c.Service.RequestTimeout <= 0 {
		return errors.New("service.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateChannel() error {
	switch c.Channel.Transport {
	case TransportWebSocket:
		switch c.Channel.Framing {
		case FramingSocketIO, FramingJSON:
		default:
			return fmt.Errorf("channel.framing must be %q or %q, got %q", FramingSocketIO, FramingJSON, c.Channel.Framing)
		}
		if c.Channel.URL != "" {
			parsed, err := url.Parse(c.Channel.URL)
			if err != nil {
				return fmt.Errorf("channel.url: %w", err)
			}
			switch parsed.Scheme {
			case "ws", "wss", "http", "https":
			default:
				return fmt.Errorf("channel.url must use ws, wss, http, or https, got %q", c.Channel.URL)
			}
		}
	case TransportNATS:
		if c.Channel.URL == "" {
			return errors.New("channel.url must be set when channel.transport is nats")
		}
	case TransportRedis:
		if c.Channel.URL == "" {
			return errors.New("channel.url must be set to host:port when channel.transport is redis")
		}
		if c.Channel.RedisDB < 0 {
			return errors.New("channel.redis_db must be >= 0")
		}
	default:
		return fmt.Errorf("channel.transport must be one of websocket, nats, redis; got %q", c.Channel.Transport)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxFileGiB <= 0 {
		return errors.New("limits.max_file_gib must be positive")
	}
	if len(c.Limits.MIMETypes) == 0 && len(c.Limits.Extensions) == 0 {
		return errors.New("limits must allow at least one MIME type or extension")
	}
	for _, mime := range c.Limits.MIMETypes {
		if !strings.Contains(mime, "/") {
			return fmt.Errorf("limits.mime_types: %q is not a MIME type", mime)
		}
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.TimeoutSeconds < 0 {
		return errors.New("session.timeout_seconds must be >= 0")
	}
	if c.Session.AdvanceDelayMilliseconds < 0 {
		return errors.New("session.advance_delay_milliseconds must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
		}
	}
	return nil
}
