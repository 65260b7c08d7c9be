// Package config holds configuration types for the two binaries: the
// interactive game client and the relay server.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Role represents the user's chosen role in a session.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Client stores the parameters gathered from CLI flags or interactive
// prompts for cmd/gameroom.
type Client struct {
	Role       Role
	PlayerName string
	RelayURL   string // WebSocket URL of the relay server
	SessionRef string // Guest: shareable reference to join
	MaxPlayers int    // Host: roster cap
	ActivityID string // Host: pre-selected activity, optional
}

// Relay is the relay server configuration.
type Relay struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

// LoadRelay reads the relay configuration from config/config.<env>.yaml,
// selected by CONFIG_ENV, falling back to defaults when no file exists.
func LoadRelay() (*Relay, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	v.SetConfigFile(fmt.Sprintf("config/config.%s.yaml", env))
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")

	// A missing file is fine; the defaults run a usable relay.
	_ = v.ReadInConfig()

	var cfg Relay
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse relay config: %w", err)
	}
	return &cfg, nil
}
