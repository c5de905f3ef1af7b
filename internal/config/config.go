// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Geocoding GeocodingConfig `yaml:"geocoding" mapstructure:"geocoding"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Presets   PresetsConfig   `yaml:"presets" mapstructure:"presets"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the geocode cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodingConfig configures the geocoding providers.
type GeocodingConfig struct {
	PostcodesBaseURL string  `yaml:"postcodes_base_url" mapstructure:"postcodes_base_url"`
	NominatimBaseURL string  `yaml:"nominatim_base_url" mapstructure:"nominatim_base_url"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec   float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// OverpassConfig configures the map-data query provider.
type OverpassConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// SearchConfig holds the default search geometry.
type SearchConfig struct {
	RadiusMeters    int     `yaml:"radius_meters" mapstructure:"radius_meters"`
	MaxAssignMeters float64 `yaml:"max_assign_meters" mapstructure:"max_assign_meters"`
}

// PresetsConfig points at an optional user preset file.
type PresetsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures the web server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STREETSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "geocode_cache.db")
	v.SetDefault("geocoding.postcodes_base_url", "https://api.postcodes.io")
	v.SetDefault("geocoding.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "streetsignal/1.0 (hello@streetsignal.dev)")
	v.SetDefault("geocoding.timeout_secs", 10)
	v.SetDefault("geocoding.requests_per_sec", 0.5)
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 240)
	v.SetDefault("overpass.requests_per_sec", 1.0)
	v.SetDefault("search.radius_meters", 900)
	v.SetDefault("search.max_assign_meters", 200.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the fields a given run mode depends on. Mode is one of
// "run", "serve", or "geocode".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			problems = append(problems, "cache.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			problems = append(problems, "cache.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "cache.driver must be sqlite or postgres")
	}

	switch mode {
	case "run":
		if c.Search.RadiusMeters <= 0 {
			problems = append(problems, "search.radius_meters must be > 0")
		}
		if c.Search.MaxAssignMeters <= 0 {
			problems = append(problems, "search.max_assign_meters must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "geocode":
		// Cache checks above are sufficient.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
