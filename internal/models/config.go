package models

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int      `json:"port"`
	ReadTimeoutSec  int      `json:"readTimeoutSec"`
	WriteTimeoutSec int      `json:"writeTimeoutSec"`
	IdleTimeoutSec  int      `json:"idleTimeoutSec"`
	AllowedOrigins  []string `json:"allowedOrigins"`
}

// CallConfig contains call signaling settings
type CallConfig struct {
	RingTimeoutSec    int `json:"ringTimeoutSec"`
	EndCallCooldownMs int `json:"endCallCooldownMs"`
}

// UploadConfig contains the upload collaborator settings
type UploadConfig struct {
	Dir           string `json:"dir"`
	MaxSizeMB     int    `json:"maxSizeMB"`
	PublicBaseURL string `json:"publicBaseUrl"`
}

// TracingConfig contains OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// Config is the top-level application configuration
type Config struct {
	LogLevel string        `json:"logLevel"`
	Server   ServerConfig  `json:"server"`
	Call     CallConfig    `json:"call"`
	Upload   UploadConfig  `json:"upload"`
	Tracing  TracingConfig `json:"tracing"`
}

// ConfigError represents a configuration validation failure
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
