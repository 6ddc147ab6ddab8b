package config

import "time"

// LogFormat selects the zap encoder.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// Config is the top-level supportbot configuration, corresponding to supportbot.yml.
type Config struct {
	// AdminChatID is the session identifier of the administrative channel.
	AdminChatID  string         `yaml:"admin_chat_id" koanf:"admin_chat_id"`
	DatabasePath string         `yaml:"database_path" koanf:"database_path"`
	Telegram     TelegramConfig `yaml:"telegram" koanf:"telegram"`
	Operator     OperatorConfig `yaml:"operator" koanf:"operator"`
	Engine       EngineConfig   `yaml:"engine" koanf:"engine"`
	HTTP         HTTPConfig     `yaml:"http" koanf:"http"`
	Log          LogConfig      `yaml:"log" koanf:"log"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token       string `yaml:"token" koanf:"token"`
	PollTimeout int    `yaml:"poll_timeout" koanf:"poll_timeout"`
	Debug       bool   `yaml:"debug" koanf:"debug"`
}

// OperatorConfig controls the hand-off to the human operator.
type OperatorConfig struct {
	ConnectDelay time.Duration `yaml:"connect_delay" koanf:"connect_delay"`
	// OnlineAtStart seeds the runtime online flag. It is never re-read.
	OnlineAtStart bool `yaml:"online_at_start" koanf:"online_at_start"`
}

// EngineConfig tunes the session actors.
type EngineConfig struct {
	MailboxSize int `yaml:"mailbox_size" koanf:"mailbox_size"`
}

// HTTPConfig holds settings for the read-only admin API.
type HTTPConfig struct {
	Enabled         bool `yaml:"enabled" koanf:"enabled"`
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string    `yaml:"level" koanf:"level"`
	Format LogFormat `yaml:"format" koanf:"format"`
}
