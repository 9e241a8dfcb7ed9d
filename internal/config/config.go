package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
	Chat  ChatConfig  `mapstructure:"chat" yaml:"chat"`
	WS    WSConfig    `mapstructure:"ws" yaml:"ws"`
}

// StoreConfig selects and tunes the durable store.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN     string        `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ConnectAttempts uint64        `mapstructure:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff" yaml:"connect_backoff"`
}

// ChatConfig configures the single chatroom.
type ChatConfig struct {
	RoomID         string `mapstructure:"room_id" yaml:"room_id"`
	ServerIdentity string `mapstructure:"server_identity" yaml:"server_identity"`
	// HistoryOrder is "newest_first" or "oldest_first".
	HistoryOrder string `mapstructure:"history_order" yaml:"history_order"`
	Stdin        bool   `mapstructure:"stdin" yaml:"stdin"`
}

// WSConfig configures the realtime channel.
type WSConfig struct {
	// AllowedOrigins empty accepts any origin.
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MessageRate     float64  `mapstructure:"message_rate" yaml:"message_rate"`
	MessageBurst    int      `mapstructure:"message_burst" yaml:"message_burst"`
	MaxMessageBytes int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		Store: StoreConfig{
			Driver:          "sqlite",
			SQLitePath:      "lobbychat.db",
			Timeout:         5 * time.Second,
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
		},
		Chat: ChatConfig{
			RoomID:         "1",
			ServerIdentity: "robot",
			HistoryOrder:   "newest_first",
			Stdin:          true,
		},
		WS: WSConfig{
			AllowedOrigins:  []string{},
			MessageRate:     5,
			MessageBurst:    10,
			MaxMessageBytes: 8192,
		},
	}
}

// Overrides carries command line values; zero values are ignored.
type Overrides struct {
	Addr       string
	LogLevel   string
	SQLitePath string
	NoStdin    bool
}

// UpdateFrom overwrites receiver fields with the non-zero overrides.
func (c *Config) UpdateFrom(o Overrides) {
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.SQLitePath != "" {
		c.Store.SQLitePath = o.SQLitePath
	}
	if o.NoStdin {
		c.Chat.Stdin = false
	}
}
