package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/dependency"
	"github.com/core-tools/hsu-watchad/pkg/directory"
	"github.com/core-tools/hsu-watchad/pkg/docstore"
	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"
	"github.com/core-tools/hsu-watchad/pkg/schedule"
	"github.com/core-tools/hsu-watchad/pkg/searchindex"
	"github.com/core-tools/hsu-watchad/pkg/supervisor"

	"gopkg.in/yaml.v3"
)

// EngineWorkerCount is the size of the supervised worker pool. Every
// start/stop/status addresses the same group, so it is not configurable.
const EngineWorkerCount = 5

const DefaultConfigFileName = "watchad.yaml"

const (
	LogBackendZap = "zap"
	LogBackendStd = "std"
)

// Config is the controller configuration, read from <root>/watchad.yaml.
type Config struct {
	RootDirectory string                        `yaml:"-"`
	Log           LogConfig                     `yaml:"log"`
	Supervisor    supervisor.Config             `yaml:"supervisor"`
	SearchIndex   searchindex.Config            `yaml:"search_index"`
	DocumentStore docstore.Config               `yaml:"document_store"`
	MessageQueue  dependency.MessageQueueConfig `yaml:"message_queue"`
	Directory     directory.Config              `yaml:"directory"`
	Install       InstallConfig                 `yaml:"install"`
	Schedule      schedule.Config               `yaml:"schedule"`
}

type LogConfig struct {
	Backend           string `yaml:"backend"`
	logging.ZapConfig `yaml:",inline"`
}

type InstallConfig struct {
	// LearningPeriod is added to the install time to produce the learning end time.
	LearningPeriod  time.Duration `yaml:"learning_period"`
	SensitiveGroups []string      `yaml:"sensitive_groups,omitempty"`
}

// DefaultSensitiveGroups are the well-known privileged groups seeded at install.
func DefaultSensitiveGroups() []string {
	return []string{
		"Domain Admins",
		"Enterprise Admins",
		"Schema Admins",
		"Administrators",
		"Account Operators",
		"Backup Operators",
		"Server Operators",
		"Print Operators",
		"Group Policy Creator Owners",
		"DnsAdmins",
		"Key Admins",
		"Enterprise Key Admins",
	}
}

func Default(rootDirectory string) *Config {
	return &Config{
		RootDirectory: rootDirectory,
		Log: LogConfig{
			Backend:   LogBackendZap,
			ZapConfig: logging.DefaultZapConfig(),
		},
		Supervisor:    supervisor.DefaultConfig(),
		SearchIndex:   searchindex.DefaultConfig(),
		DocumentStore: docstore.DefaultConfig(),
		MessageQueue:  dependency.DefaultMessageQueueConfig(),
		Directory:     directory.DefaultConfig(),
		Install: InstallConfig{
			LearningPeriod:  10 * 24 * time.Hour,
			SensitiveGroups: DefaultSensitiveGroups(),
		},
		Schedule: schedule.DefaultConfig(),
	}
}

// Load reads the config file over the defaults. An empty filename means
// <root>/watchad.yaml, which may be absent; an explicit filename must exist.
func Load(rootDirectory, filename string) (*Config, error) {
	config := Default(rootDirectory)

	explicit := filename != ""
	if !explicit {
		filename = filepath.Join(rootDirectory, DefaultConfigFileName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return config, nil
		}
		return nil, errors.NewConfigurationError("failed to read configuration file", err).WithContext("filename", filename)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.NewConfigurationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}
	config.RootDirectory = rootDirectory

	return config, nil
}

// ResolveRoot returns the absolute engine root. Without an explicit value the
// directory holding the controller executable is used.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		executable, err := os.Executable()
		if err != nil {
			return "", errors.NewConfigurationError("cannot determine engine root directory", err)
		}
		if resolved, err := filepath.EvalSymlinks(executable); err == nil {
			executable = resolved
		}
		root = filepath.Dir(executable)
	}

	absolute, err := filepath.Abs(root)
	if err != nil {
		return "", errors.NewConfigurationError("cannot resolve engine root directory", err).WithContext("root", root)
	}
	return absolute, nil
}

// EngineGroup is the supervised worker pool of this installation.
func (c *Config) EngineGroup() supervisor.Group {
	return supervisor.Group{
		RootDirectory: c.RootDirectory,
		WorkerCount:   EngineWorkerCount,
	}
}
