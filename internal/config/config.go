package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the sync agent needs for one user session.
type Config struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	WSURL      string `mapstructure:"ws_url"`
	AuthToken  string `mapstructure:"auth_token"`
	UserID     string `mapstructure:"user_id"`

	HTTPPort    string `mapstructure:"http_port"`
	DebugRoutes bool   `mapstructure:"debug_routes"`

	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`

	PageSize         int           `mapstructure:"page_size"`
	TypingWindow     time.Duration `mapstructure:"typing_window"`
	ReconnectMinWait time.Duration `mapstructure:"reconnect_min_wait"`
	ReconnectMaxWait time.Duration `mapstructure:"reconnect_max_wait"`
}

// Load reads an optional config.yaml and CHATSYNC_* environment overrides.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	viper.SetEnvPrefix("CHATSYNC")
	viper.AutomaticEnv()

	viper.SetDefault("api_base_url", "http://localhost:8080/api")
	viper.SetDefault("ws_url", "ws://localhost:8080/ws")
	viper.SetDefault("http_port", "8093")
	viper.SetDefault("debug_routes", false)
	viper.SetDefault("amqp_exchange", "chat_sync_events")
	viper.SetDefault("environment", "development")
	viper.SetDefault("page_size", 30)
	viper.SetDefault("typing_window", 2*time.Second)
	viper.SetDefault("reconnect_min_wait", time.Second)
	viper.SetDefault("reconnect_max_wait", 30*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	if cfg.AuthToken == "" {
		return nil, errors.New("auth_token is required")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be positive, got %d", cfg.PageSize)
	}

	return &cfg, nil
}
