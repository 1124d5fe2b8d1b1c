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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Retention  RetentionConfig  `yaml:"retention" mapstructure:"retention"`
	Ordino     OrdinoConfig     `yaml:"ordino" mapstructure:"ordino"`
	Harvest    HarvestConfig    `yaml:"harvest" mapstructure:"harvest"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig locates the knowledge store on disk.
type StoreConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// RetentionConfig configures the retention sweep.
type RetentionConfig struct {
	Days int `yaml:"days" mapstructure:"days"`
}

// OrdinoConfig holds test-reporting API settings.
type OrdinoConfig struct {
	BaseURL          string   `yaml:"base_url" mapstructure:"base_url"`
	APIKey           string   `yaml:"api_key" mapstructure:"api_key"`
	ProjectIDs       []string `yaml:"project_ids" mapstructure:"project_ids"`
	RateLimit        float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	CircuitThreshold int      `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs int      `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// HarvestConfig configures failure harvesting.
type HarvestConfig struct {
	Concurrency  int  `yaml:"concurrency" mapstructure:"concurrency"`
	SaveAnalysis bool `yaml:"save_analysis" mapstructure:"save_analysis"`
}

// ServerConfig configures the HTTP tool server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures knowledge-base alerting. A zero threshold
// disables its alert.
type MonitoringConfig struct {
	WebhookURL          string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	PendingThreshold    int    `yaml:"pending_threshold" mapstructure:"pending_threshold"`
	RecurrenceThreshold int    `yaml:"recurrence_threshold" mapstructure:"recurrence_threshold"`
	NewFailureThreshold int    `yaml:"new_failure_threshold" mapstructure:"new_failure_threshold"`
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
	v.SetEnvPrefix("FAILKB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.root", "knowledge_db")
	v.SetDefault("retention.days", 30)
	v.SetDefault("ordino.base_url", "https://dev-portal.ordino.ai/api/v1")
	v.SetDefault("ordino.api_key", "")
	v.SetDefault("ordino.project_ids", []string{})
	v.SetDefault("ordino.rate_limit", 5.0)
	v.SetDefault("ordino.timeout_secs", 30)
	v.SetDefault("ordino.max_attempts", 3)
	v.SetDefault("ordino.circuit_threshold", 5)
	v.SetDefault("ordino.circuit_reset_secs", 30)
	v.SetDefault("harvest.concurrency", 4)
	v.SetDefault("harvest.save_analysis", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.pending_threshold", 50)
	v.SetDefault("monitoring.recurrence_threshold", 10)
	v.SetDefault("monitoring.new_failure_threshold", 20)
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

// ValidateOrdino checks the settings required to call the test-reporting API.
func (c *Config) ValidateOrdino() error {
	if c.Ordino.APIKey == "" {
		return eris.New("config: ordino.api_key is required (set FAILKB_ORDINO_API_KEY)")
	}
	if c.Ordino.BaseURL == "" {
		return eris.New("config: ordino.base_url is required")
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
