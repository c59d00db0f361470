package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port      string
	Width     int
	Height    int
	AssetRoot string
	LogLevel  string
}

func Default() Config {
	return Config{
		Port:      "8080",
		Width:     1024,
		Height:    200,
		AssetRoot: "www",
		LogLevel:  "info",
	}
}

// Load reads the process environment on top of Default.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("ASSET_ROOT"); v != "" {
		cfg.AssetRoot = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	var err error
	if cfg.Width, err = positiveInt("CANVAS_WIDTH", cfg.Width); err != nil {
		return Config{}, err
	}
	if cfg.Height, err = positiveInt("CANVAS_HEIGHT", cfg.Height); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func positiveInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q must be a positive integer", ErrInvalid, key, v)
	}
	return n, nil
}
