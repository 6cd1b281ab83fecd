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
	Data  DataConfig  `yaml:"data" mapstructure:"data"`
	Store StoreConfig `yaml:"store" mapstructure:"store"`
	Fetch FetchConfig `yaml:"fetch" mapstructure:"fetch"`
	Map   MapConfig   `yaml:"map" mapstructure:"map"`
	Serve ServeConfig `yaml:"serve" mapstructure:"serve"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw source tables.
type DataConfig struct {
	DepartmentFile string `yaml:"department_file" mapstructure:"department_file"`
	CommuneFile    string `yaml:"commune_file" mapstructure:"commune_file"`
	Delimiter      string `yaml:"delimiter" mapstructure:"delimiter"`
	SchemaFile     string `yaml:"schema_file" mapstructure:"schema_file"` // empty = embedded schema
}

// StoreConfig configures the snapshot database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// FetchConfig holds the open-data download endpoints.
type FetchConfig struct {
	DepartmentURL string  `yaml:"department_url" mapstructure:"department_url"`
	CommuneURL    string  `yaml:"commune_url" mapstructure:"commune_url"`
	Dir           string  `yaml:"dir" mapstructure:"dir"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// MapConfig configures the optional boundary GeoJSON fetch.
type MapConfig struct {
	BoundariesURL string `yaml:"boundaries_url" mapstructure:"boundaries_url"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ServeConfig configures the read-only HTTP surface.
type ServeConfig struct {
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
	v.SetEnvPrefix("LOVAC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.department_file", "data/lovac_opendata_dep.csv")
	v.SetDefault("data.commune_file", "data/lovac-opendata-communes.csv")
	v.SetDefault("data.delimiter", ";")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "lovac.db")
	v.SetDefault("fetch.department_url", "https://www.data.gouv.fr/fr/datasets/r/lovac-opendata-dep")
	v.SetDefault("fetch.commune_url", "https://www.data.gouv.fr/fr/datasets/r/lovac-opendata-communes")
	v.SetDefault("fetch.dir", "data")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.rate_per_sec", 1)
	v.SetDefault("map.boundaries_url", "https://france-geojson.gregoiredavid.fr/repo/departements.geojson")
	v.SetDefault("map.timeout_secs", 30)
	v.SetDefault("map.max_retries", 2)
	v.SetDefault("serve.port", 8080)
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

// DelimiterRune returns the configured delimiter as a rune, defaulting
// to the semicolon the source ships with.
func (d DataConfig) DelimiterRune() rune {
	for _, r := range d.Delimiter {
		return r
	}
	return ';'
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
