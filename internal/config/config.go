// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/gamedb-scraper/internal/logging"
	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/freshness"
)

// EnvPrefix prefixes every environment override, e.g. SCRAPER_SCRAPER_WORKERS.
const EnvPrefix = "SCRAPER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scraper  ScraperConfig           `mapstructure:"scraper"`
	HTTP     HTTPConfig              `mapstructure:"http"`
	Gate     GateConfig              `mapstructure:"gate"`
	Cache    CacheConfig             `mapstructure:"cache"`
	Output   OutputConfig            `mapstructure:"output"`
	Logging  logging.Config          `mapstructure:"logging"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
	Postgres PostgresConfig          `mapstructure:"postgres"`
	GCS      GCSConfig               `mapstructure:"gcs"`
	PubSub   PubSubConfig            `mapstructure:"pubsub"`
	Targets  map[string]TargetConfig `mapstructure:"targets"`
}

// ScraperConfig governs the worker pool and upstream site.
type ScraperConfig struct {
	Workers           int     `mapstructure:"workers"`
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	Offline           bool    `mapstructure:"offline"`
	DryRun            bool    `mapstructure:"dry_run"`
	ProgressEvery     int     `mapstructure:"progress_every"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// GateConfig configures rate-limit recovery.
type GateConfig struct {
	Backoff    time.Duration `mapstructure:"backoff"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CacheConfig sets where pages are cached and how freshness is judged.
type CacheConfig struct {
	Dir          string `mapstructure:"dir"`
	Location     string `mapstructure:"location"`
	MarkerFormat string `mapstructure:"marker_format"`
}

// LoadLocation resolves the timezone used for "today".
func (c CacheConfig) LoadLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("load cache.location %q: %w", c.Location, err)
	}
	return loc, nil
}

// OutputConfig sets where TSV outputs land.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig toggles the status server.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// PostgresConfig enables the optional record export.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// GCSConfig enables the optional output archive.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// TargetConfig is the configured form of a scraper.Target.
type TargetConfig struct {
	Entity       string             `mapstructure:"entity"`
	Expansion    string             `mapstructure:"expansion"`
	LastID       int                `mapstructure:"last_id"`
	NotFoundName string             `mapstructure:"not_found_name"`
	MaxLevel     int                `mapstructure:"max_level"`
	Rules        []scraper.RuleSpec `mapstructure:"rules"`
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.workers", 10)
	v.SetDefault("scraper.base_url", "https://www.wowhead.com")
	v.SetDefault("scraper.user_agent", "gamedb-scraper/0.1")
	v.SetDefault("scraper.offline", false)
	v.SetDefault("scraper.dry_run", false)
	v.SetDefault("scraper.progress_every", 100)
	v.SetDefault("scraper.requests_per_second", 0)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("gate.backoff", 60*time.Second)
	v.SetDefault("gate.max_retries", 30)
	v.SetDefault("cache.dir", "data/html")
	v.SetDefault("cache.location", "Local")
	v.SetDefault("cache.marker_format", freshness.DefaultLayout)
	v.SetDefault("output.dir", "data/tsv")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("postgres.table", "records")
	v.SetDefault("gcs.prefix", "runs")

	for name, target := range builtinTargets {
		key := "targets." + name
		v.SetDefault(key+".entity", target.Entity)
		v.SetDefault(key+".expansion", target.Expansion)
		v.SetDefault(key+".last_id", target.LastID)
		v.SetDefault(key+".not_found_name", target.NotFoundName)
		v.SetDefault(key+".max_level", target.MaxLevel)
	}
}

var builtinTargets = map[string]TargetConfig{
	"classic-items": {
		Entity:       string(scraper.EntityItem),
		Expansion:    "classic",
		LastID:       24283,
		NotFoundName: "Classic Items",
	},
	"classic-quests": {
		Entity:       string(scraper.EntityQuest),
		Expansion:    "classic",
		LastID:       9665,
		NotFoundName: "Classic Quest",
		MaxLevel:     60,
	},
	"tbc-quests": {
		Entity:       string(scraper.EntityQuest),
		Expansion:    "tbc",
		LastID:       12515,
		NotFoundName: "TBC Quests",
		MaxLevel:     70,
	},
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be > 0")
	}
	if c.Scraper.ProgressEvery <= 0 {
		return fmt.Errorf("scraper.progress_every must be > 0")
	}
	if c.Scraper.RequestsPerSecond < 0 {
		return fmt.Errorf("scraper.requests_per_second must be >= 0")
	}
	if !c.Scraper.Offline {
		u, err := url.Parse(c.Scraper.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("scraper.base_url must be an absolute URL")
		}
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.Gate.Backoff <= 0 {
		return fmt.Errorf("gate.backoff must be > 0")
	}
	if c.Gate.MaxRetries < 0 {
		return fmt.Errorf("gate.max_retries must be >= 0")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if _, err := c.Cache.LoadLocation(); err != nil {
		return err
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	for _, name := range c.TargetNames() {
		if _, err := c.Target(name); err != nil {
			return err
		}
	}
	return nil
}

// TargetNames returns the configured target names in sorted order.
func (c Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target resolves and validates a named target.
func (c Config) Target(name string) (scraper.Target, error) {
	tc, ok := c.Targets[name]
	if !ok {
		return scraper.Target{}, fmt.Errorf("unknown target %q", name)
	}
	entity, err := scraper.ParseEntityType(tc.Entity)
	if err != nil {
		return scraper.Target{}, fmt.Errorf("target %s: %w", name, err)
	}
	target := scraper.Target{
		Name:         name,
		Entity:       entity,
		Expansion:    tc.Expansion,
		LastID:       tc.LastID,
		NotFoundName: tc.NotFoundName,
		MaxLevel:     tc.MaxLevel,
		Rules:        tc.Rules,
	}
	if err := target.Validate(); err != nil {
		return scraper.Target{}, err
	}
	return target, nil
}
