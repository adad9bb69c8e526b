package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml in the working
// directory plus environment variables with the TAMLIL_ prefix. Environment
// variables take precedence. The result is validated before being returned.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TAMLIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file is fine; env vars and defaults carry the load.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_upload_bytes", 500*1024*1024)

	v.SetDefault("storage.snapshot_path", "data/tasks_state.json")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.output_dir", "downloads")
	v.SetDefault("storage.download_dir", "downloads")

	v.SetDefault("janitor.retention_hours", 24)
	v.SetDefault("janitor.sweep_interval_min", 60)
	v.SetDefault("janitor.idle_timeout_min", 15)
	v.SetDefault("janitor.idle_shutdown", false)
	v.SetDefault("janitor.idle_shutdown_dry_run", true)

	v.SetDefault("whisper.binary_path", "whisper-cli")
	v.SetDefault("whisper.model_path", "models/ggml-small.bin")
	v.SetDefault("whisper.language", "he")
	v.SetDefault("whisper.threads", 4)

	// Empty defaults register the keys with viper so env-only overrides
	// are visible to Unmarshal.
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.summary_char_budget", 8000)

	v.SetDefault("diarize.service_url", "")
	v.SetDefault("watch.dir", "")
}
