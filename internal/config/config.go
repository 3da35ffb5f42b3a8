package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Events   EventsConfig   `mapstructure:"events" validate:"required"`
	Agents   AgentsConfig   `mapstructure:"agents" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// LLMConfig contains the text generation settings used by the
// software_engineer agent type. An empty API key disables generation.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
}

// TaskConfig sizes the dispatch worker pool.
type TaskConfig struct {
	// WorkerCount is the number of tasks executed concurrently.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// QueueSize bounds the number of scheduled tasks waiting for a worker.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`
}

// EventsConfig controls the real-time subscription layer.
type EventsConfig struct {
	InitTaskLimit       int   `mapstructure:"init_task_limit" validate:"required,gt=0,lte=1000"`
	WriteTimeoutSeconds int   `mapstructure:"write_timeout_seconds" validate:"required,gt=0"`
	ReadLimitBytes      int64 `mapstructure:"read_limit_bytes" validate:"required,gt=0"`

	// MetricsSchedule is a cron spec for the metrics heartbeat.
	// Empty disables the heartbeat.
	MetricsSchedule string `mapstructure:"metrics_schedule"`
}

// AgentsConfig controls which agent types can be deployed and how much
// history the agent list carries.
type AgentsConfig struct {
	AllowedTypes []string `mapstructure:"allowed_types" validate:"required,min=1,dive,oneof=customer_support data_entry software_engineer"`
	HistoryLimit int      `mapstructure:"history_limit" validate:"gte=0,lte=1000"`
}
