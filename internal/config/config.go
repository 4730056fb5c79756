package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"kenalan/internal/constants"
	"kenalan/internal/models"
	"kenalan/internal/security"
)

var (
	ErrInvalidPort        = models.ConfigError{Message: "server port must be between 1 and 65535"}
	ErrInvalidRingTimeout = models.ConfigError{Message: "ring timeout must be positive"}
)

// LoadConfig reads and validates the configuration file, then applies
// environment overrides. A missing file yields pure defaults.
func LoadConfig(path string) (*models.Config, error) {
	var config models.Config

	if path != "" {
		// Validate config file path to prevent directory traversal
		if err := security.ValidateConfigPath(path); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}

		file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateConfigPath above
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := json.Unmarshal(file, &config); err != nil {
			return nil, err
		}
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Call.RingTimeoutSec == 0 {
		c.Call.RingTimeoutSec = constants.DefaultRingTimeoutSec
	}
	if c.Call.EndCallCooldownMs == 0 {
		c.Call.EndCallCooldownMs = constants.DefaultEndCallCooldownMs
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = constants.DefaultUploadDir
	}
	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = constants.DefaultMaxUploadSizeMB
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "kenalan"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func validate(c *models.Config) error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Call.RingTimeoutSec < 1 {
		return ErrInvalidRingTimeout
	}
	if c.Call.EndCallCooldownMs < 0 {
		return models.ConfigError{Message: "end-call cooldown cannot be negative"}
	}
	if c.Upload.MaxSizeMB < 1 {
		return models.ConfigError{Message: "upload size limit must be at least 1 MB"}
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if port := os.Getenv("KENALAN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("KENALAN_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if dir := os.Getenv("KENALAN_UPLOAD_DIR"); dir != "" {
		c.Upload.Dir = dir
	}
	if base := os.Getenv("KENALAN_PUBLIC_BASE_URL"); base != "" {
		c.Upload.PublicBaseURL = base
	}
	if endpoint := os.Getenv("KENALAN_OTLP_ENDPOINT"); endpoint != "" {
		c.Tracing.OTLPEndpoint = endpoint
		c.Tracing.UseStdout = false
	}
}
