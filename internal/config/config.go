package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/bizdir/internal/dedupe"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Dedupe DedupeConfig `yaml:"dedupe" mapstructure:"dedupe"`
	Audit  AuditConfig  `yaml:"audit" mapstructure:"audit"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// DedupeConfig holds the similarity thresholds. The numbers are tuning
// heuristics, not derived constants.
type DedupeConfig struct {
	dedupe.Thresholds `yaml:",inline" mapstructure:",squash"`
	MinClusterSize    int `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
}

// AuditConfig configures the address cluster audit.
type AuditConfig struct {
	MinClusterSize int    `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	AnnotateNote   string `yaml:"annotate_note" mapstructure:"annotate_note"`
	Format         string `yaml:"format" mapstructure:"format"`
}

// ImportConfig configures bulk imports.
type ImportConfig struct {
	Policy         string `yaml:"policy" mapstructure:"policy"`
	SkipDuplicates bool   `yaml:"skip_duplicates" mapstructure:"skip_duplicates"`
	Sheet          string `yaml:"sheet" mapstructure:"sheet"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BIZDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	th := dedupe.DefaultThresholds()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bizdir.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("dedupe.name_similarity", th.NameSimilarity)
	v.SetDefault("dedupe.legit_max_similarity", th.LegitMaxSimilarity)
	v.SetDefault("dedupe.high_similarity", th.HighSimilarity)
	v.SetDefault("dedupe.diversity_ratio", th.DiversityRatio)
	v.SetDefault("dedupe.diversity_cap", th.DiversityCap)
	v.SetDefault("dedupe.min_cluster_size", 2)
	v.SetDefault("audit.min_cluster_size", 3)
	v.SetDefault("audit.concurrency", 4)
	v.SetDefault("audit.annotate_note", "Legitimate multi-tenant location")
	v.SetDefault("audit.format", "text")
	v.SetDefault("import.policy", "warn")
	v.SetDefault("import.skip_duplicates", false)

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

// Validate checks the settings a command depends on. mode names the command
// being run: "migrate", "check", "import", "audit" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if err := c.Dedupe.Thresholds.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Dedupe.MinClusterSize < 1 {
		errs = append(errs, "dedupe.min_cluster_size must be >= 1")
	}

	switch mode {
	case "migrate", "check":
	case "import":
		switch c.Import.Policy {
		case "warn", "reject":
		default:
			errs = append(errs, "import.policy must be warn or reject")
		}
	case "audit":
		if c.Audit.MinClusterSize < 1 {
			errs = append(errs, "audit.min_cluster_size must be >= 1")
		}
		if c.Audit.Concurrency < 1 || c.Audit.Concurrency > 64 {
			errs = append(errs, "audit.concurrency must be between 1 and 64")
		}
		switch c.Audit.Format {
		case "text", "json", "yaml":
		default:
			errs = append(errs, "audit.format must be text, json or yaml")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
			errs = append(errs, "server.rate_burst must be >= 1 when rate_limit is set")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
