// Package config provides configuration management for place-better.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	Passing   PassingConfig   `mapstructure:"passing" validate:"required"`
	Features  FeaturesConfig  `mapstructure:"features" validate:"required"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Wagering  WageringConfig  `mapstructure:"wagering"`
	Batch     BatchConfig     `mapstructure:"batch" validate:"required"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Export    ExportConfig    `mapstructure:"export"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name           string `mapstructure:"name" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"required,gt=0"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// DecoderConfig controls the normalization pass
type DecoderConfig struct {
	GradedOnly bool `mapstructure:"graded_only"`
}

// PassingConfig tunes corner order recovery
type PassingConfig struct {
	HeadWindow        int    `mapstructure:"head_window" validate:"required,gt=0"`
	TailWindow        int    `mapstructure:"tail_window" validate:"required,gt=0"`
	Sentinel          string `mapstructure:"sentinel" validate:"required"`
	MaxHorseNo        int    `mapstructure:"max_horse_no" validate:"required,gt=0,lte=28"`
	BlockScanFallback bool   `mapstructure:"block_scan_fallback"`
	StrictDate        bool   `mapstructure:"strict_date"`
	Workers           int    `mapstructure:"workers" validate:"omitempty,gt=0"`
}

// FeaturesConfig controls historical feature aggregation
type FeaturesConfig struct {
	LookbackN  int      `mapstructure:"lookback_n" validate:"required,gt=0"`
	Extensions []string `mapstructure:"extensions" validate:"dive,oneof=latest_metrics field_size"`
}

// PredictorConfig represents the probability model server configuration
type PredictorConfig struct {
	URL                string  `mapstructure:"url" validate:"omitempty,url"`
	APIKey             string  `mapstructure:"api_key"`
	ModelVersion       string  `mapstructure:"model_version"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
	RetryAttempts      int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" validate:"gte=0"`
	CacheTTLSeconds    int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	CacheMaxSize       int     `mapstructure:"cache_max_size" validate:"gte=0"`
	GRPCHealthAddress  string  `mapstructure:"grpc_health_address"`
	PredictionDir      string  `mapstructure:"prediction_dir"`
}

// WageringConfig represents the recommendation policy. Unset fields fall back
// to the preset and then to the engine defaults.
type WageringConfig struct {
	Preset        string   `mapstructure:"preset"`
	PresetsFile   string   `mapstructure:"presets_file"`
	OddsSelection string   `mapstructure:"odds_selection" validate:"omitempty,oddsselection"`
	MinEV         *float64 `mapstructure:"min_ev"`
	MinP          *float64 `mapstructure:"min_p" validate:"omitempty,gte=0"`
	MaxOdds       *float64 `mapstructure:"max_odds" validate:"omitempty,gt=0"`
	Rank          string   `mapstructure:"rank" validate:"omitempty,ranking"`
	Stake         int      `mapstructure:"stake" validate:"gte=0"`
	MaxBets       int      `mapstructure:"max_bets" validate:"gte=0"`
}

// BatchConfig represents batch recommendation runs
type BatchConfig struct {
	Workers      int    `mapstructure:"workers" validate:"required,gt=0"`
	FailFast     bool   `mapstructure:"fail_fast"`
	ReportFormat string `mapstructure:"report_format" validate:"required,reportformat"`
	ReportPath   string `mapstructure:"report_path"`
}

// FeedConfig represents the websocket telegram feed
type FeedConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	URL              string `mapstructure:"url" validate:"omitempty,url"`
	DataSpec         string `mapstructure:"dataspec"`
	ReconnectSeconds int    `mapstructure:"reconnect_seconds" validate:"gte=0"`
}

// ExportConfig represents training export upload
type ExportConfig struct {
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

// SchedulerConfig represents periodic jobs
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	NormalizeCron string `mapstructure:"normalize_cron"`
	BatchCron     string `mapstructure:"batch_cron"`
	RaceKeysFile  string `mapstructure:"race_keys_file"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents log output configuration
type LoggingConfig struct {
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// SecretsConfig locates the AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

// PredictorTimeout returns the predictor request timeout
func (c *Config) PredictorTimeout() time.Duration {
	return time.Duration(c.Predictor.TimeoutSeconds) * time.Second
}

// PredictorCacheTTL returns how long predictions are cached
func (c *Config) PredictorCacheTTL() time.Duration {
	return time.Duration(c.Predictor.CacheTTLSeconds) * time.Second
}
