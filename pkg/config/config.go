// Package config reads the loader's system properties from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// GameJarPathKey names the property holding the game archive location.
const GameJarPathKey = "WARZONE_GAME_JAR_PATH"

// Config holds the loader settings. Command line flags override these.
type Config struct {
	// GameJarPath is where the game archive is looked up.
	GameJarPath string `env:"WARZONE_GAME_JAR_PATH" envDefault:"./game.jar"`
	// Development enables debug logging and development-only behavior.
	Development bool `env:"WARZONE_DEVELOPMENT" envDefault:"false"`
	// LogLevel is the minimum level of the console log.
	LogLevel string `env:"WARZONE_LOG_LEVEL" envDefault:"info"`
	// ModsDir overrides <gameDir>/mods.
	ModsDir string `env:"WARZONE_MODS_DIR"`

	Telemetry Telemetry
}

// Telemetry configures opt-in trace export.
type Telemetry struct {
	Endpoint string `env:"WARZONE_OTEL_ENDPOINT"`
	Enabled  bool   `env:"WARZONE_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the configuration read from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
