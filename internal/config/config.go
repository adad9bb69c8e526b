// Package config defines and loads application configuration.
package config

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
	Janitor JanitorConfig `mapstructure:"janitor" validate:"required"`
	Whisper WhisperConfig `mapstructure:"whisper" validate:"required"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Diarize DiarizeConfig `mapstructure:"diarize"`
	Watch   WatchConfig   `mapstructure:"watch"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port           int    `mapstructure:"port"            validate:"required,gt=0,lt=65536"`
	LogLevel       string `mapstructure:"log_level"       validate:"required,oneof=debug info warn error"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// StorageConfig contains filesystem layout settings.
type StorageConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path" validate:"required"`
	UploadDir    string `mapstructure:"upload_dir"    validate:"required"`
	OutputDir    string `mapstructure:"output_dir"    validate:"required"`
	DownloadDir  string `mapstructure:"download_dir"  validate:"required"`
}

// JanitorConfig contains retention and idle-shutdown settings.
type JanitorConfig struct {
	RetentionHours     int  `mapstructure:"retention_hours"       validate:"gt=0"`
	SweepIntervalMin   int  `mapstructure:"sweep_interval_min"    validate:"gt=0"`
	IdleTimeoutMin     int  `mapstructure:"idle_timeout_min"      validate:"gt=0"`
	IdleShutdown       bool `mapstructure:"idle_shutdown"`
	IdleShutdownDryRun bool `mapstructure:"idle_shutdown_dry_run"`
}

// WhisperConfig contains transcription engine settings, passed through to
// the whisper.cpp CLI.
type WhisperConfig struct {
	BinaryPath string `mapstructure:"binary_path" validate:"required"`
	ModelPath  string `mapstructure:"model_path"  validate:"required"`
	Language   string `mapstructure:"language"    validate:"required"`
	Threads    int    `mapstructure:"threads"`
}

// LLMConfig contains Gemini settings. An empty API key disables AI features.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	Model             string `mapstructure:"model"`
	SummaryCharBudget int    `mapstructure:"summary_char_budget"`
}

// DiarizeConfig contains the optional diarization sidecar address. An empty
// URL disables speaker identification.
type DiarizeConfig struct {
	ServiceURL string `mapstructure:"service_url" validate:"omitempty,url"`
}

// WatchConfig contains the optional inbox watcher settings. An empty dir
// disables the watcher.
type WatchConfig struct {
	Dir string `mapstructure:"dir"`
}
