package config

import (
	"os"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/schedule"
	"github.com/core-tools/hsu-watchad/pkg/supervisor"
)

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewConfigurationError("configuration cannot be nil", nil)
	}

	if err := supervisor.ValidateGroup(config.EngineGroup()); err != nil {
		return errors.NewConfigurationError("invalid engine root", err)
	}
	if info, err := os.Stat(config.RootDirectory); err != nil {
		return errors.NewConfigurationError("engine root directory not accessible: "+config.RootDirectory, err)
	} else if !info.IsDir() {
		return errors.NewConfigurationError("engine root is not a directory: "+config.RootDirectory, nil)
	}

	if err := validateLogConfig(config.Log); err != nil {
		return errors.NewConfigurationError("invalid log configuration", err)
	}

	if config.Supervisor.SupervisordPath == "" || config.Supervisor.SupervisorctlPath == "" {
		return errors.NewConfigurationError("supervisor executables are required", nil)
	}
	if config.Supervisor.ConfigFile == "" {
		return errors.NewConfigurationError("supervisor config file is required", nil)
	}
	if config.Supervisor.Timeout < 0 {
		return errors.NewConfigurationError("supervisor timeout cannot be negative", nil)
	}

	if len(config.SearchIndex.Addresses) == 0 {
		return errors.NewConfigurationError("at least one search index address is required", nil)
	}
	if config.SearchIndex.TemplateName == "" {
		return errors.NewConfigurationError("search index template name is required", nil)
	}
	if config.DocumentStore.URI == "" || config.DocumentStore.Database == "" {
		return errors.NewConfigurationError("document store uri and database are required", nil)
	}
	if config.MessageQueue.URL == "" {
		return errors.NewConfigurationError("message queue url is required", nil)
	}

	timeouts := map[string]time.Duration{
		"search index":   config.SearchIndex.Timeout,
		"document store": config.DocumentStore.Timeout,
		"message queue":  config.MessageQueue.Timeout,
		"directory":      config.Directory.Timeout,
	}
	for name, timeout := range timeouts {
		if err := ValidateTimeout(timeout, name); err != nil {
			return errors.NewConfigurationError("invalid timeout", err)
		}
	}

	if config.Install.LearningPeriod < 0 {
		return errors.NewConfigurationError("learning period cannot be negative", nil)
	}

	if err := schedule.ValidateConfig(config.Schedule); err != nil {
		return errors.NewConfigurationError("invalid schedule configuration", err)
	}

	return nil
}

// ValidateTimeout validates timeout duration
func ValidateTimeout(timeout time.Duration, name string) error {
	if timeout < 0 {
		return errors.NewValidationError(name+" timeout cannot be negative", nil)
	}

	if timeout == 0 {
		return errors.NewValidationError(name+" timeout cannot be zero", nil)
	}

	return nil
}

func validateLogConfig(config LogConfig) error {
	switch config.Backend {
	case LogBackendZap, LogBackendStd, "":
	default:
		return errors.NewValidationError("unsupported log backend: "+config.Backend, nil)
	}
	switch config.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return errors.NewValidationError("unsupported log level: "+config.Level, nil)
	}
	return nil
}
