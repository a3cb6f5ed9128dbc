// Package config loads the runtime configuration for bookcourier.
// Defaults come from the struct provider, BOOKCOURIER_* environment
// variables overlay them, and the merged result is validated before
// anything connects anywhere.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "BOOKCOURIER_"

// Config is the merged runtime configuration.
type Config struct {
	// CatalogURL is what the backend itself calls.
	CatalogURL string `koanf:"catalog_url" validate:"required,url"`
	// CatalogPublicURL is what download links handed to users point at.
	CatalogPublicURL string `koanf:"catalog_public_url" validate:"required,url"`

	RedisAddr     string `koanf:"redis_addr" validate:"required"`
	RedisPassword string `koanf:"redis_password"`
	// BadgerPath empty keeps the durable store in memory.
	BadgerPath string `koanf:"badger_path"`

	// ArchiveChannelID zero disables the archive-forward tier.
	ArchiveChannelID int64 `koanf:"archive_channel_id"`

	OpsAddr string `koanf:"ops_addr" validate:"required"`

	MaxPayloadBytes int           `koanf:"max_payload_bytes" validate:"min=1"`
	MetadataTimeout time.Duration `koanf:"metadata_timeout" validate:"min=1s"`
	DownloadTimeout time.Duration `koanf:"download_timeout" validate:"min=1m"`
	NotifyInterval  time.Duration `koanf:"notify_interval" validate:"min=1s"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		CatalogURL:       "http://localhost:7770",
		CatalogPublicURL: "http://localhost:7770",
		RedisAddr:        "localhost:6379",
		BadgerPath:       "./data/badger",
		OpsAddr:          ":8080",
		MaxPayloadBytes:  50_000_000,
		MetadataTimeout:  30 * time.Second,
		DownloadTimeout:  10 * time.Minute,
		NotifyInterval:   3 * time.Second,
	}
}

// Load merges defaults with the environment and validates the result.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration and reports every violation at
// once.
func Validate(cfg Config) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
