package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/leitner"
)

// DefaultTimezone is the zone whose calendar days key the review counter.
const DefaultTimezone = "Europe/Berlin"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Vault    VaultConfig    `yaml:"vault"`
	Review   ReviewConfig   `yaml:"review"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Deck     DeckConfig     `yaml:"deck"`
}

type ServerConfig struct {
	Port      string `yaml:"port" validate:"omitempty,numeric"`
	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=json text"`
}

type VaultConfig struct {
	Root      string `yaml:"root"`
	ScanLimit int    `yaml:"scan_limit" validate:"gte=0"`
}

// ReviewConfig holds the review preferences. Values outside their allowed
// sets are normalized, never rejected.
type ReviewConfig struct {
	BoxCount           int    `yaml:"box_count"`
	PageSize           int    `yaml:"page_size"`
	Order              string `yaml:"order"`
	RepetitionStrength string `yaml:"repetition_strength"`
	Mode               string `yaml:"mode"`
	Timezone           string `yaml:"timezone"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=memory redis postgres sqlite"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type PostgresConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DeckConfig controls the parsed deck cache. An empty or zero TTL disables it.
type DeckConfig struct {
	TTL string `yaml:"ttl"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: "8080", LogLevel: "info", LogFormat: "json"},
		Vault:   VaultConfig{Root: ".", ScanLimit: 8},
		Review:  ReviewConfig{BoxCount: leitner.DefaultBoxCount, PageSize: app.DefaultPageSize, Order: string(app.OrderInOrder), RepetitionStrength: string(app.StrengthMedium), Mode: string(app.ModeAll), Timezone: DefaultTimezone},
		Storage: StorageConfig{Driver: "memory"},
		SQLite:  SQLiteConfig{Path: "data/review.db"},
		Deck:    DeckConfig{TTL: "10m"},
	}
}

var validate = validator.New()

// Load reads YAML config from path over the defaults, validates it and
// normalizes the review settings. It returns the normalization changes so the
// caller can report them. A missing file yields the defaults.
func Load(path string) (Config, []string, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil, nil
	case err != nil:
		return cfg, nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	cfg, changes := Normalize(cfg)
	return cfg, changes, nil
}

// Validate checks field formats and that the chosen storage driver has
// what it needs to connect.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Storage.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("invalid config: storage driver redis needs redis.addr")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return errors.New("invalid config: storage driver postgres needs postgres.url")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return errors.New("invalid config: storage driver sqlite needs sqlite.path")
		}
	}
	return nil
}

// Normalize maps out-of-range review settings onto allowed values and
// reports each change.
func Normalize(c Config) (Config, []string) {
	var changes []string
	note := func(field string, from, to any) {
		changes = append(changes, fmt.Sprintf("%s %v replaced by %v", field, from, to))
	}

	if n := leitner.NormalizeBoxCount(c.Review.BoxCount); n != c.Review.BoxCount {
		note("review.box_count", c.Review.BoxCount, n)
		c.Review.BoxCount = n
	}
	if n := app.NormalizePageSize(c.Review.PageSize); n != c.Review.PageSize {
		note("review.page_size", c.Review.PageSize, n)
		c.Review.PageSize = n
	}
	if o := string(app.ParseOrder(c.Review.Order)); o != c.Review.Order {
		note("review.order", c.Review.Order, o)
		c.Review.Order = o
	}
	if s := string(app.ParseStrength(c.Review.RepetitionStrength)); s != c.Review.RepetitionStrength {
		note("review.repetition_strength", c.Review.RepetitionStrength, s)
		c.Review.RepetitionStrength = s
	}
	if m := string(app.ParseMode(c.Review.Mode)); m != c.Review.Mode {
		note("review.mode", c.Review.Mode, m)
		c.Review.Mode = m
	}
	if _, err := time.LoadLocation(c.Review.Timezone); err != nil || c.Review.Timezone == "" {
		note("review.timezone", c.Review.Timezone, DefaultTimezone)
		c.Review.Timezone = DefaultTimezone
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	c.Server.LogLevel = strings.ToLower(c.Server.LogLevel)
	return c, changes
}

// Location resolves the review timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Review.Timezone)
	if err != nil || c.Review.Timezone == "" {
		return time.UTC
	}
	return loc
}

// ReviewSettings converts the review section into service settings.
func (c Config) ReviewSettings() app.Settings {
	return app.Settings{
		BoxCount: c.Review.BoxCount,
		PageSize: c.Review.PageSize,
		Order:    app.ParseOrder(c.Review.Order),
		Strength: app.ParseStrength(c.Review.RepetitionStrength),
		Mode:     app.ParseMode(c.Review.Mode),
		Location: c.Location(),
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
