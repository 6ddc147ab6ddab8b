package config

import "time"

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "supportbot.yml"

// DefaultConfig returns a Config with sensible defaults. AdminChatID has no
// default and must be provided.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "supportbot.db",
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Operator: OperatorConfig{
			ConnectDelay:  5 * time.Second,
			OnlineAtStart: false,
		},
		Engine: EngineConfig{
			MailboxSize: 64,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Port:    8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
	}
}
