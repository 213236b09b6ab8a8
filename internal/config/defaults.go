package config

const (
	defaultServiceURL               = "http://127.0.0.1:5000"
	defaultRequestTimeout           = 15
	defaultUploadTimeout            = 0
	defaultTransport                = TransportWebSocket
	defaultSocketPath               = "/socket.io/"
	defaultFraming                  = FramingSocketIO
	defaultReconnectInterval        = 5
	defaultNATSSubject              = "subtitles.events"
	defaultRedisChannel             = "subtitles:events"
	defaultModel                    = "base"
	defaultLanguage                 = "auto"
	defaultMaxFileGiB               = 5
	defaultSessionTimeout           = 1800
	defaultAdvanceDelayMilliseconds = 2000
	defaultWatchDebounce            = 1500
	defaultWatchQueueSize           = 64
	defaultLogDir                   = "~/.local/share/subpilot/logs"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultNotifyRequestTimeout     = 10
)

var (
	defaultMIMETypes = []string{
		"video/mp4",
		"video/avi",
		"video/quicktime",
		"video/x-msvideo",
		"video/x-matroska",
		"audio/mpeg",
		"audio/wav",
		"audio/x-wav",
		"audio/mp4",
		"audio/flac",
		"audio/ogg",
	}
	defaultExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".mp3", ".wav", ".m4a", ".flac", ".ogg"}
	defaultFormats    = []string{"srt", "vtt", "ass"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Service: Service{
			BaseURL:        defaultServiceURL,
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
		},
		Channel: Channel{
			Transport:         defaultTransport,
			Path:              defaultSocketPath,
			Framing:           defaultFraming,
			ReconnectInterval: defaultReconnectInterval,
			NATSSubject:       defaultNATSSubject,
			RedisChannel:      defaultRedisChannel,
		},
		Submission: Submission{
			Model:    defaultModel,
			Language: defaultLanguage,
			VAD:      true,
		},
		Limits: Limits{
			MaxFileGiB: defaultMaxFileGiB,
			MIMETypes:  append([]string(nil), defaultMIMETypes...),
			Extensions: append([]string(nil), defaultExtensions...),
		},
		Session: Session{
			TimeoutSeconds:           defaultSessionTimeout,
			AdvanceDelayMilliseconds: defaultAdvanceDelayMilliseconds,
		},
		Output: Output{
			Formats: append([]string(nil), defaultFormats...),
		},
		Watch: Watch{
			DebounceMilliseconds: defaultWatchDebounce,
			QueueSize:            defaultWatchQueueSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Ready:          true,
			Failed:         true,
			Batch:          true,
		},
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
