package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Reporter  ReporterConfig  `mapstructure:"reporter"`
	Transform TransformConfig `mapstructure:"transform"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type DBConfig struct {
	Type     string `mapstructure:"type"` // postgres, oracle, couchbase, mongodb, none
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Pool     struct {
		MaxConns int `mapstructure:"max_conns"`
		MinConns int `mapstructure:"min_conns"`
	} `mapstructure:"pool"`
}

// PrivacyConfig is the file form of a masking policy.
type PrivacyConfig struct {
	Level             string   `mapstructure:"level"` // none, private, sensitive
	MaskQueryLiterals bool     `mapstructure:"mask_query_literals"`
	ExemptHeaders     []string `mapstructure:"exempt_headers"`
	ExemptQueries     []string `mapstructure:"exempt_queries"`
	ExemptBodyFields  []string `mapstructure:"exempt_body_fields"`
}

// AnalyticsConfig drives the batching tracker that writes masked entries to the repository.
type AnalyticsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Workers       int           `mapstructure:"workers"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Privacy       PrivacyConfig `mapstructure:"privacy"`
}

// ReporterConfig drives the log display sink.
type ReporterConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Backend     string        `mapstructure:"backend"` // zerolog or zap
	BodyPreview int           `mapstructure:"body_preview"`
	Privacy     PrivacyConfig `mapstructure:"privacy"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Global  struct {
		Requests int           `mapstructure:"requests"`
		Window   time.Duration `mapstructure:"window"`
		Burst    int           `mapstructure:"burst"`
	} `mapstructure:"global"`
	PerIP struct {
		Enabled   bool          `mapstructure:"enabled"`
		Requests  int           `mapstructure:"requests"`
		Window    time.Duration `mapstructure:"window"`
		Burst     int           `mapstructure:"burst"`
		WhiteList []string      `mapstructure:"whitelist"` // IPs or CIDRs
	} `mapstructure:"per_ip"`
	Storage struct {
		Type  string `mapstructure:"type"` // memory or redis
		Redis struct {
			Host     string        `mapstructure:"host"`
			Port     int           `mapstructure:"port"`
			Password string        `mapstructure:"password"`
			DB       int           `mapstructure:"db"`
			Timeout  time.Duration `mapstructure:"timeout"`
		} `mapstructure:"redis"`
	} `mapstructure:"storage"`
}

// TransformConfig represents the configuration for entry scripts
type TransformConfig struct {
	// Directory containing <name>.js scripts
	ScriptsDir string `mapstructure:"scripts_dir"`
	// Scripts bound to URL hosts
	Scripts map[string]ScriptBinding `mapstructure:"scripts"`
}

// ScriptBinding binds one script to the entries whose URL host matches Host.
// Host may start with "*." to match any subdomain.
type ScriptBinding struct {
	Host   string `mapstructure:"host"`
	Script string `mapstructure:"script"`
}

var validLevels = []string{"none", "private", "sensitive"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.body_limit", 4*1024*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("db.type", "none")

	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.workers", 4)
	v.SetDefault("analytics.buffer_size", 1000)
	v.SetDefault("analytics.batch_size", 100)
	v.SetDefault("analytics.flush_interval", 100*time.Millisecond)
	v.SetDefault("analytics.privacy.level", "sensitive")
	v.SetDefault("analytics.privacy.mask_query_literals", true)

	v.SetDefault("reporter.enabled", true)
	v.SetDefault("reporter.backend", "zerolog")
	v.SetDefault("reporter.body_preview", 512)
	v.SetDefault("reporter.privacy.level", "private")
	v.SetDefault("reporter.privacy.mask_query_literals", true)

	v.SetDefault("rate_limit.storage.type", "memory")
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Dir(configPath))
	v.SetConfigFile(configPath)

	v.SetEnvPrefix("GIZLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Analytics.Privacy.validate("analytics"); err != nil {
		errs = append(errs, err)
	}
	if err := c.Reporter.Privacy.validate("reporter"); err != nil {
		errs = append(errs, err)
	}
	if c.Analytics.Enabled {
		if c.Analytics.Workers <= 0 {
			errs = append(errs, fmt.Errorf("analytics.workers must be positive, got %d", c.Analytics.Workers))
		}
		if c.Analytics.BatchSize <= 0 {
			errs = append(errs, fmt.Errorf("analytics.batch_size must be positive, got %d", c.Analytics.BatchSize))
		}
		if c.Analytics.BufferSize < 0 {
			errs = append(errs, fmt.Errorf("analytics.buffer_size must not be negative, got %d", c.Analytics.BufferSize))
		}
	}
	switch c.Reporter.Backend {
	case "zerolog", "zap":
	default:
		errs = append(errs, fmt.Errorf("reporter.backend must be zerolog or zap, got %q", c.Reporter.Backend))
	}
	return errors.Join(errs...)
}

func (p PrivacyConfig) validate(section string) error {
	level := strings.ToLower(strings.TrimSpace(p.Level))
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("%s.privacy.level must be one of %s, got %q", section, strings.Join(validLevels, ", "), p.Level)
}
