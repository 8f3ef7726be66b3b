package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"match-collector/internal/collector"
	"match-collector/internal/riot"
	"match-collector/internal/storage"
)

// EnvPaths are tried in order by LoadEnv
var EnvPaths = []string{".env", "../.env", "../../.env"}

// Sink names accepted in output.sinks
const (
	SinkCSV      = "csv"
	SinkParquet  = "parquet"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkTurso    = "turso"
)

var knownSinks = map[string]bool{
	SinkCSV: true, SinkParquet: true, SinkPostgres: true, SinkSQLite: true, SinkTurso: true,
}

type Config struct {
	Region     RegionConfig     `yaml:"region"`
	Client     ClientConfig     `yaml:"client"`
	Collection CollectionConfig `yaml:"collection"`
	Output     OutputConfig     `yaml:"output"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	Turso      TursoConfig      `yaml:"turso"`
	S3         storage.S3Config `yaml:"s3"`
	Discord    DiscordConfig    `yaml:"discord"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type RegionConfig struct {
	Platform string `yaml:"platform"`
	Routing  string `yaml:"routing"`
}

type ClientConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	RetryAfterDefault time.Duration `yaml:"retry_after_default"`
	TransportBackoff  time.Duration `yaml:"transport_backoff"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond int           `yaml:"requests_per_second"` // 0 disables the window
	RequestsPer2Min   int           `yaml:"requests_per_2min"`
}

type CollectionConfig struct {
	Tier             string        `yaml:"tier"`
	Division         string        `yaml:"division"`
	Players          int           `yaml:"players"`
	MatchesPerPlayer int           `yaml:"matches_per_player"`
	SplitDivisions   bool          `yaml:"split_divisions"`
	AllTiers         bool          `yaml:"all_tiers"`
	PageDelay        time.Duration `yaml:"page_delay"`
	ListDelay        time.Duration `yaml:"list_delay"`
	UnitDelay        time.Duration `yaml:"unit_delay"`
	BatchSize        int           `yaml:"batch_size"`
	BatchCooldown    time.Duration `yaml:"batch_cooldown"`
	PauseMin         time.Duration `yaml:"pause_min"`
	PauseMax         time.Duration `yaml:"pause_max"`
}

type OutputConfig struct {
	RawDir       string   `yaml:"raw_dir"`
	ProcessedDir string   `yaml:"processed_dir"`
	ArchiveDir   string   `yaml:"archive_dir"` // empty disables the raw archive
	ColdDir      string   `yaml:"cold_dir"`
	Wide         bool     `yaml:"wide"`
	Sinks        []string `yaml:"sinks"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type TursoConfig struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

// Default returns the settings used when no file is given
func Default() *Config {
	fc := collector.DefaultFetcherConfig()
	return &Config{
		Region: RegionConfig{Platform: riot.DefaultPlatform, Routing: riot.DefaultRouting},
		Client: ClientConfig{
			Concurrency:       riot.DefaultConcurrency,
			RetryAfterDefault: time.Second,
			TransportBackoff:  time.Second,
			Timeout:           30 * time.Second,
			RequestsPerSecond: riot.DefaultRequestsPerSecond,
			RequestsPer2Min:   riot.DefaultRequestsPer2Min,
		},
		Collection: CollectionConfig{
			Players:          100,
			MatchesPerPlayer: collector.DefaultMatchesPerPlayer,
			PageDelay:        collector.DefaultPageDelay,
			ListDelay:        collector.DefaultListDelay,
			UnitDelay:        collector.DefaultUnitDelay,
			BatchSize:        fc.BatchSize,
			BatchCooldown:    fc.Cooldown,
			PauseMin:         fc.PauseMin,
			PauseMax:         fc.PauseMax,
		},
		Output: OutputConfig{
			RawDir:       "data/raw",
			ProcessedDir: "data/processed",
			ArchiveDir:   "data/archive",
			Sinks:        []string{SinkCSV},
		},
		Log: LogConfig{Level: "info", Format: "json", Output: "stderr"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Secrets missing from the file are taken from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEmpty(&c.Postgres.DSN, "DATABASE_URL")
	setIfEmpty(&c.Turso.URL, "TURSO_DATABASE_URL")
	setIfEmpty(&c.Turso.AuthToken, "TURSO_AUTH_TOKEN")
	setIfEmpty(&c.Discord.WebhookURL, "DISCORD_WEBHOOK_URL")
	setIfEmpty(&c.S3.Bucket, "S3_BUCKET")
}

func setIfEmpty(dst *string, env string) {
	if *dst != "" {
		return
	}
	// Remove quotes if present (from .env parsing)
	*dst = strings.Trim(os.Getenv(env), "\"")
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Client.Concurrency <= 0 {
		return fmt.Errorf("client.concurrency must be positive: %w", riot.ErrConfiguration)
	}
	if c.Client.RequestsPerSecond < 0 || c.Client.RequestsPer2Min < 0 {
		return fmt.Errorf("client request budget must not be negative: %w", riot.ErrConfiguration)
	}
	col := c.Collection
	if col.Players <= 0 {
		return fmt.Errorf("collection.players must be positive: %w", riot.ErrConfiguration)
	}
	if col.MatchesPerPlayer <= 0 || col.MatchesPerPlayer > 100 {
		return fmt.Errorf("collection.matches_per_player must be in 1..100: %w", riot.ErrConfiguration)
	}
	if col.BatchSize <= 0 {
		return fmt.Errorf("collection.batch_size must be positive: %w", riot.ErrConfiguration)
	}
	if col.PauseMax < col.PauseMin {
		return fmt.Errorf("collection.pause_max below pause_min: %w", riot.ErrConfiguration)
	}
	for _, d := range []time.Duration{col.PageDelay, col.ListDelay, col.UnitDelay, col.BatchCooldown, col.PauseMin} {
		if d < 0 {
			return fmt.Errorf("collection delays must not be negative: %w", riot.ErrConfiguration)
		}
	}
	if !col.AllTiers && col.Tier != "" {
		if _, err := collector.NewTierSpec(col.Tier, col.Division); err != nil {
			return err
		}
	}

	for _, s := range c.Output.Sinks {
		if !knownSinks[s] {
			return fmt.Errorf("unknown sink %q: %w", s, riot.ErrConfiguration)
		}
	}
	if c.HasSink(SinkSQLite) && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite sink needs sqlite.path: %w", riot.ErrConfiguration)
	}
	if c.HasSink(SinkTurso) && c.Turso.URL == "" {
		return fmt.Errorf("turso sink needs turso.url or TURSO_DATABASE_URL: %w", riot.ErrConfiguration)
	}
	return nil
}

// HasSink reports whether name is listed in output.sinks
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Output.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// ParseSinks splits a comma separated sink list
func ParseSinks(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FetcherConfig projects the batch settings for collector.NewFetcher
func (c *Config) FetcherConfig() collector.FetcherConfig {
	return collector.FetcherConfig{
		BatchSize: c.Collection.BatchSize,
		Cooldown:  c.Collection.BatchCooldown,
		PauseMin:  c.Collection.PauseMin,
		PauseMax:  c.Collection.PauseMax,
	}
}

// LoadEnv loads the first .env found in EnvPaths and returns its path,
// or "" when none exists
func LoadEnv() string {
	for _, path := range EnvPaths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}
