package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLACE_BETTER_DATABASE_HOST.
const EnvPrefix = "PLACE_BETTER"

const defaultConfigPath = "config/config.yaml"

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "place-better")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "place_better")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("decoder.graded_only", false)

	v.SetDefault("passing.head_window", 120)
	v.SetDefault("passing.tail_window", 900)
	v.SetDefault("passing.sentinel", "*")
	v.SetDefault("passing.max_horse_no", 28)
	v.SetDefault("passing.block_scan_fallback", true)
	v.SetDefault("passing.strict_date", false)
	v.SetDefault("passing.workers", 1)

	v.SetDefault("features.lookback_n", 3)
	v.SetDefault("features.extensions", []string{})

	v.SetDefault("predictor.url", "")
	v.SetDefault("predictor.api_key", "")
	v.SetDefault("predictor.model_version", "v1")
	v.SetDefault("predictor.timeout_seconds", 10)
	v.SetDefault("predictor.retry_attempts", 3)
	v.SetDefault("predictor.rate_limit_per_second", 10.0)
	v.SetDefault("predictor.cache_ttl_seconds", 300)
	v.SetDefault("predictor.cache_max_size", 1000)
	v.SetDefault("predictor.grpc_health_address", "")
	v.SetDefault("predictor.prediction_dir", "")

	v.SetDefault("wagering.preset", "")
	v.SetDefault("wagering.presets_file", "")
	v.SetDefault("wagering.odds_selection", "")
	v.SetDefault("wagering.rank", "")
	v.SetDefault("wagering.stake", 0)
	v.SetDefault("wagering.max_bets", 0)

	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.fail_fast", false)
	v.SetDefault("batch.report_format", "jsonl")
	v.SetDefault("batch.report_path", "")

	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.dataspec", "RACE")
	v.SetDefault("feed.reconnect_seconds", 5)

	v.SetDefault("export.s3_bucket", "")
	v.SetDefault("export.s3_region", "ap-northeast-1")
	v.SetDefault("export.s3_prefix", "training/")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.normalize_cron", "30 5 * * *")
	v.SetDefault("scheduler.batch_cron", "*/10 9-16 * * *")
	v.SetDefault("scheduler.race_keys_file", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.format", "")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", true)

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.region", "ap-northeast-1")
	v.SetDefault("secrets.secret_name", "")
}

// ReloadFromEnv reloads the configuration from PLACE_BETTER_CONFIG_PATH when it is set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(EnvPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := LoadWithDefaults(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}
	return nil
}
