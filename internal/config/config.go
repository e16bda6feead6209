// Package config loads the agent's Configuration via Viper, layering
// built-in defaults under an optional YAML file under an environment
// override (spec §3, SPEC_FULL.md §10.2).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the agent's full runtime configuration.
type Config struct {
	Server                     string
	IngestionEndpoint          string
	ConfigDir                  string
	RulesDir                   string
	ProcessMetricsSendInterval time.Duration
	BatchSubmissionInterval    time.Duration
	BatchSubmissionRetries     int
	BatchSubmissionRetryDelay  time.Duration
	MonitoredFileExtensions    []string
}

// defaults mirrors spec §3/§6's documented defaults.
func defaults(v *viper.Viper) {
	v.SetDefault("server", "127.0.0.1:8722")
	v.SetDefault("ingestion_endpoint", "https://ingest.tracer.cloud/v1/events")
	v.SetDefault("config_dir", "/tmp/tracer")
	v.SetDefault("rules_dir", "")
	v.SetDefault("process_metrics_send_interval_ms", 10000)
	v.SetDefault("batch_submission_interval_ms", 5000)
	v.SetDefault("batch_submission_retries", 3)
	v.SetDefault("batch_submission_retry_delay_ms", 500)
	v.SetDefault("monitored_file_extensions", []string{".fq", ".fastq"})
}

// Load reads configuration with precedence (lowest to highest): built-in
// defaults, a YAML file at configDir/config.yaml (if present), then
// TRACER_-prefixed environment variables. An empty configDir falls back to
// $TRACER_CONFIG_DIR, then to /tmp/tracer.
func Load(configDir string) (Config, error) {
	v := viper.New()
	defaults(v)

	if configDir == "" {
		configDir = os.Getenv("TRACER_CONFIG_DIR")
	}
	if configDir == "" {
		configDir = "/tmp/tracer"
	}
	v.Set("config_dir", configDir)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: reading %s/config.yaml: %w", configDir, err)
		}
	}

	v.SetEnvPrefix("TRACER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return Config{
		Server:                     v.GetString("server"),
		IngestionEndpoint:          v.GetString("ingestion_endpoint"),
		ConfigDir:                  v.GetString("config_dir"),
		RulesDir:                   v.GetString("rules_dir"),
		ProcessMetricsSendInterval: time.Duration(v.GetInt64("process_metrics_send_interval_ms")) * time.Millisecond,
		BatchSubmissionInterval:    time.Duration(v.GetInt64("batch_submission_interval_ms")) * time.Millisecond,
		BatchSubmissionRetries:     v.GetInt("batch_submission_retries"),
		BatchSubmissionRetryDelay:  time.Duration(v.GetInt64("batch_submission_retry_delay_ms")) * time.Millisecond,
		MonitoredFileExtensions:    v.GetStringSlice("monitored_file_extensions"),
	}, nil
}
