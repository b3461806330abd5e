package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Dataset    DatasetConfig              `mapstructure:"dataset"`
	Engine     EngineConfig               `mapstructure:"engine"`
	Cache      CacheConfig                `mapstructure:"cache"`
	Thresholds map[string]ThresholdConfig `mapstructure:"thresholds"`
	Database   DatabaseConfig             `mapstructure:"database"`
	NATS       NATSConfig                 `mapstructure:"nats"`
	Valkey     ValkeyConfig               `mapstructure:"valkey"`
	Temporal   TemporalConfig             `mapstructure:"temporal"`
	Telemetry  TelemetryConfig            `mapstructure:"telemetry"`
	Log        LogConfig                  `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	ReadTimeout    int `mapstructure:"read_timeout"`
	WriteTimeout   int `mapstructure:"write_timeout"`
	RequestTimeout int `mapstructure:"request_timeout"`
}

// DatasetConfig locates the remote dataset and the selection a new map
// session starts from.
type DatasetConfig struct {
	TimesBaseURL     string  `mapstructure:"times_base_url"`
	TilesBaseURL     string  `mapstructure:"tiles_base_url"`
	Version          string  `mapstructure:"version"`
	Years            []int   `mapstructure:"years"`
	DefaultMode      string  `mapstructure:"default_mode"`
	DefaultGeography string  `mapstructure:"default_geography"`
	DefaultYear      int     `mapstructure:"default_year"`
	DefaultZoom      float64 `mapstructure:"default_zoom"`
}

// Dataset returns the domain view of the dataset location.
func (d DatasetConfig) Dataset() domain.Dataset {
	return domain.Dataset{
		TimesBaseURL: d.TimesBaseURL,
		TilesBaseURL: d.TilesBaseURL,
		Version:      d.Version,
	}
}

// DefaultSelection returns the selection a new session starts with.
func (d DatasetConfig) DefaultSelection() domain.QuerySelection {
	return domain.QuerySelection{
		Mode:      domain.Mode(d.DefaultMode),
		Year:      d.DefaultYear,
		Geography: domain.Geography(d.DefaultGeography),
	}
}

type EngineConfig struct {
	MaxConcurrentFetches int `mapstructure:"max_concurrent_fetches"`
	// Zero leaves remote requests without a deadline.
	RemoteTimeout int `mapstructure:"remote_timeout"`
}

func (e EngineConfig) RemoteTimeoutDuration() time.Duration {
	return time.Duration(e.RemoteTimeout) * time.Second
}

type CacheConfig struct {
	ResultTTL     int    `mapstructure:"result_ttl"`
	LocalMaxItems int64  `mapstructure:"local_max_items"`
	LocalTTL      int    `mapstructure:"local_ttl"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

// ThresholdConfig overrides the bucket bounds of one mode, in seconds.
// Empty bands keep their default.
type ThresholdConfig struct {
	Coarse []float64 `mapstructure:"coarse"`
	Medium []float64 `mapstructure:"medium"`
	Fine   []float64 `mapstructure:"fine"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
	Enabled  bool   `mapstructure:"enabled"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TRAVELTIME_DATASET_VERSION → dataset.version
	v.SetEnvPrefix("TRAVELTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 60)
	v.SetDefault("dataset.times_base_url", "https://data.opentimes.org/times")
	v.SetDefault("dataset.tiles_base_url", "https://data.opentimes.org/tiles")
	v.SetDefault("dataset.version", "0.0.1")
	v.SetDefault("dataset.years", []int{2020, 2021, 2022, 2023, 2024})
	v.SetDefault("dataset.default_mode", "car")
	v.SetDefault("dataset.default_geography", "tract")
	v.SetDefault("dataset.default_year", 2024)
	v.SetDefault("dataset.default_zoom", 4)
	v.SetDefault("engine.max_concurrent_fetches", 16)
	v.SetDefault("engine.remote_timeout", 0)
	v.SetDefault("cache.result_ttl", 3600)
	v.SetDefault("cache.local_max_items", 256)
	v.SetDefault("cache.local_ttl", 300)
	v.SetDefault("cache.key_prefix", "traveltime:")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "traveltime")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "traveltime")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.enabled", true)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "dataset-audit")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// ModeThresholds builds the per-mode bucket tables, applying overrides
// on top of domain.DefaultThresholds.
func (c *Config) ModeThresholds() (domain.ModeThresholds, error) {
	out := domain.ModeThresholds{}
	for name, tc := range c.Thresholds {
		mode, err := domain.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("thresholds: %w", err)
		}
		table := domain.DefaultThresholds
		for band, bounds := range map[domain.ZoomBand][]float64{
			domain.ZoomCoarse: tc.Coarse,
			domain.ZoomMedium: tc.Medium,
			domain.ZoomFine:   tc.Fine,
		} {
			if len(bounds) == 0 {
				continue
			}
			if len(bounds) != domain.BucketCount {
				return nil, fmt.Errorf("thresholds.%s.%s: want %d bounds, got %d", name, band, domain.BucketCount, len(bounds))
			}
			copy(table[band].Thresholds[:], bounds)
			table[band].Labels = domain.LabelsFor(table[band].Thresholds)
		}
		if err := table.Validate(); err != nil {
			return nil, fmt.Errorf("thresholds.%s: %w", name, err)
		}
		out[mode] = table
	}
	return out, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Dataset.TimesBaseURL == "" {
		errs = append(errs, "dataset.times_base_url is required")
	}
	if c.Dataset.TilesBaseURL == "" {
		errs = append(errs, "dataset.tiles_base_url is required")
	}
	if c.Dataset.Version == "" {
		errs = append(errs, "dataset.version is required")
	}
	if len(c.Dataset.Years) == 0 {
		errs = append(errs, "dataset.years must not be empty")
	} else if !slices.Contains(c.Dataset.Years, c.Dataset.DefaultYear) {
		errs = append(errs, fmt.Sprintf("dataset.default_year %d is not in dataset.years", c.Dataset.DefaultYear))
	}
	if _, err := domain.ParseMode(c.Dataset.DefaultMode); err != nil {
		errs = append(errs, "dataset.default_mode: "+err.Error())
	}
	if _, err := domain.ParseGeography(c.Dataset.DefaultGeography); err != nil {
		errs = append(errs, "dataset.default_geography: "+err.Error())
	}
	if c.Engine.MaxConcurrentFetches < 0 {
		errs = append(errs, "engine.max_concurrent_fetches must not be negative")
	}
	if c.Engine.RemoteTimeout < 0 {
		errs = append(errs, "engine.remote_timeout must not be negative")
	}
	if c.Cache.ResultTTL <= 0 {
		errs = append(errs, "cache.result_ttl must be positive")
	}
	if _, err := c.ModeThresholds(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
