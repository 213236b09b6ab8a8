package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Channel transports.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
	TransportRedis     = "redis"
)

// Event framings understood by the websocket transport.
const (
	FramingSocketIO = "socketio"
	FramingJSON     = "json"
)

// Service describes how to reach the transcription service HTTP API.
type Service struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout_seconds"`
	// UploadTimeout bounds a whole upload; 0 leaves uploads unbounded.
	UploadTimeout int `toml:"upload_timeout_seconds"`
}

// Channel contains configuration for the persistent status event channel.
type Channel struct {
	Transport         string `toml:"transport"`
	URL               string `toml:"url"`
	Path              string `toml:"path"`
	Framing           string `toml:"framing"`
	ReconnectInterval int    `toml:"reconnect_interval_seconds"`
	NATSSubject       string `toml:"nats_subject"`
	RedisChannel      string `toml:"redis_channel"`
	RedisPassword     string `toml:"redis_password"`
	RedisDB           int    `toml:"redis_db"`
}

// Submission holds the default processing options sent with every upload.
type Submission struct {
	Model    string `toml:"model"`
	Language string `toml:"language"`
	VAD      bool   `toml:"vad"`
	Enhance  bool   `toml:"enhance"`
	Batch    bool   `toml:"batch"`
}

// Limits controls which candidate files are accepted.
type Limits struct {
	MaxFileGiB float64  `toml:"max_file_gib"`
	MIMETypes  []string `toml:"mime_types"`
	Extensions []string `toml:"extensions"`
}

// Session contains per-session timing.
type Session struct {
	TimeoutSeconds           int `toml:"timeout_seconds"`
	AdvanceDelayMilliseconds int `toml:"advance_delay_milliseconds"`
}

// Output controls where ready results are exported.
type Output struct {
	Dir     string   `toml:"dir"`
	Formats []string `toml:"formats"`
}

// Watch contains configuration for directory watch mode.
type Watch struct {
	DebounceMilliseconds int `toml:"debounce_milliseconds"`
	QueueSize            int `toml:"queue_size"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Ready          bool   `toml:"ready"`
	Failed         bool   `toml:"failed"`
	Batch          bool   `toml:"batch"`
}

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for subpilot.
//
// Configuration sections by subsystem:
//   - Service: transcription service HTTP endpoint and timeouts
//   - Channel: status event channel transport (websocket, nats, redis)
//   - Submission: default model, language, and preprocessing flags
//   - Limits: accepted MIME types, extensions, and maximum file size
//   - Session: session timeout and batch advance delay
//   - Output: export directory and formats for ready results
//   - Watch: directory watch debounce and backlog
//   - Notifications: ntfy push notification settings
//   - Paths, Logging: log directory, format, and level
type Config struct {
	Service       Service       `toml:"service"`
	Channel       Channel       `toml:"channel"`
	Submission    Submission    `toml:"submission"`
	Limits        Limits        `toml:"limits"`
	Session       Session       `toml:"session"`
	Output        Output        `toml:"output"`
	Watch         Watch         `toml:"watch"`
	Notifications Notifications `toml:"notifications"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subpilot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("subpilot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and output directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Output.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxFileBytes converts the configured size limit to bytes.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.Limits.MaxFileGiB * (1 << 30))
}

// SessionTimeout returns the stall timeout for an active session; zero disables it.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSeconds) * time.Second
}

// AdvanceDelay returns the pause between a terminal event and the next submission.
func (c *Config) AdvanceDelay() time.Duration {
	return time.Duration(c.Session.AdvanceDelayMilliseconds) * time.Millisecond
}

// RequestTimeout returns the timeout for short service requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Service.RequestTimeout) * time.Second
}

// UploadTimeout returns the timeout for a single upload; zero means unbounded.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Service.UploadTimeout) * time.Second
}

// ReconnectInterval returns the delay between channel reconnect attempts; zero disables reconnects.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Channel.ReconnectInterval) * time.Second
}

// WatchDebounce returns how long a watched file must stay quiet before submission.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMilliseconds) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
