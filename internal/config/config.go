package config

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Airports   AirportsConfig   `yaml:"airports" mapstructure:"airports"`
	Borders    BordersConfig    `yaml:"borders" mapstructure:"borders"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ClassifyConfig tunes the two-phase classification.
type ClassifyConfig struct {
	ThresholdMeters float64 `yaml:"threshold_meters" mapstructure:"threshold_meters"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	Property        string  `yaml:"property" mapstructure:"property"`
}

// AirportsConfig locates and filters the airport dataset.
type AirportsConfig struct {
	URL          string  `yaml:"url" mapstructure:"url"`
	Path         string  `yaml:"path" mapstructure:"path"`
	Charset      string  `yaml:"charset" mapstructure:"charset"`
	CodePattern  string  `yaml:"code_pattern" mapstructure:"code_pattern"`
	OutlierKm    float64 `yaml:"outlier_km" mapstructure:"outlier_km"`
	FilteredPath string  `yaml:"filtered_path" mapstructure:"filtered_path"`
}

// BordersConfig names the border files produced along the pipeline.
type BordersConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Split  string `yaml:"split" mapstructure:"split"`
	Output string `yaml:"output" mapstructure:"output"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the HTTP downloader.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// Timeout returns TimeoutSecs as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	UnassignedRateThreshold float64 `yaml:"unassigned_rate_threshold" mapstructure:"unassigned_rate_threshold"`
	MaxUnassignedIncrease   int     `yaml:"max_unassigned_increase" mapstructure:"max_unassigned_increase"`
}

// Load reads configuration from config.yaml, env vars, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BORDERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("classify.threshold_meters", 50000.0)
	v.SetDefault("classify.concurrency", 1)
	v.SetDefault("classify.property", "airports_gps_code")
	v.SetDefault("airports.url", "https://davidmegginson.github.io/ourairports-data/airports.csv")
	v.SetDefault("airports.path", "airports.csv")
	v.SetDefault("airports.charset", "")
	v.SetDefault("airports.code_pattern", "^[A-Z]{4}$")
	v.SetDefault("airports.outlier_km", 1000.0)
	v.SetDefault("airports.filtered_path", "airports-filtered.csv")
	v.SetDefault("borders.source", "country-borders-simplified.geo.json")
	v.SetDefault("borders.split", "country-borders-simplified-1.geo.json")
	v.SetDefault("borders.output", "country-borders-simplified-2.geo.json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "airport-borders.db")
	v.SetDefault("fetch.user_agent", "airport-borders/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.requests_per_second", 5.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.check_interval_secs", 0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.unassigned_rate_threshold", 0.02)
	v.SetDefault("monitoring.max_unassigned_increase", 25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if c.Classify.ThresholdMeters <= 0 {
		return eris.Errorf("config: classify.threshold_meters must be positive, got %v", c.Classify.ThresholdMeters)
	}
	if c.Classify.Concurrency < 1 {
		return eris.Errorf("config: classify.concurrency must be at least 1, got %d", c.Classify.Concurrency)
	}
	if c.Classify.Property == "" {
		return eris.New("config: classify.property is required")
	}
	if c.Airports.OutlierKm <= 0 {
		return eris.Errorf("config: airports.outlier_km must be positive, got %v", c.Airports.OutlierKm)
	}
	if _, err := regexp.Compile(c.Airports.CodePattern); err != nil {
		return eris.Wrap(err, "config: airports.code_pattern")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	for name, rate := range map[string]float64{
		"failure_rate_threshold":    c.Monitoring.FailureRateThreshold,
		"unassigned_rate_threshold": c.Monitoring.UnassignedRateThreshold,
	} {
		if rate < 0 || rate > 1 {
			return eris.Errorf("config: monitoring.%s must be in [0, 1], got %v", name, rate)
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
