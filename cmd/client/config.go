package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL      string        `envconfig:"CHAT_SERVER_URL" default:"http://localhost:8080"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"WARN"`
	Colours        bool          `envconfig:"CHAT_COLOURS" default:"true"`
	RequestTimeout time.Duration `envconfig:"CHAT_REQUEST_TIMEOUT" default:"10s"`
	WriteTimeout   time.Duration `envconfig:"CHAT_WRITE_TIMEOUT" default:"10s"`
	BaseDelay      time.Duration `envconfig:"CHAT_RECONNECT_BASE_DELAY" default:"1s"`
	MaxDelay       time.Duration `envconfig:"CHAT_RECONNECT_MAX_DELAY" default:"30s"`
	MaxAttempts    int           `envconfig:"CHAT_RECONNECT_MAX_ATTEMPTS" default:"5"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
