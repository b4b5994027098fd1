// Package schedule registers the engine's recurring maintenance tasks as a cron.d file.
package schedule

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"

	"github.com/robfig/cron/v3"
)

// EngineDirVariable is exported to every task through the cron file environment.
const EngineDirVariable = "WATCHAD_ENGINE_DIR"

type Task struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Command  string `yaml:"command"`
}

type Config struct {
	CronFile string `yaml:"cron_file"`
	User     string `yaml:"user"`
	Tasks    []Task `yaml:"tasks"`
}

func DefaultConfig() Config {
	return Config{
		CronFile: "/etc/cron.d/watchad",
		User:     "root",
		Tasks:    DefaultTasks(),
	}
}

func DefaultTasks() []Task {
	return []Task{
		{
			Name:     "refresh-domain-controllers",
			Schedule: "0 3 * * *",
			Command:  `"$WATCHAD_ENGINE_DIR"/tasks/refresh-domain-controllers`,
		},
		{
			Name:     "refresh-sensitive-groups",
			Schedule: "15 * * * *",
			Command:  `"$WATCHAD_ENGINE_DIR"/tasks/refresh-sensitive-groups`,
		},
		{
			Name:     "purge-old-indices",
			Schedule: "30 4 * * *",
			Command:  `"$WATCHAD_ENGINE_DIR"/tasks/purge-old-indices`,
		},
	}
}

type Registrar struct {
	config        Config
	rootDirectory string
	logger        logging.Logger
}

func NewRegistrar(config Config, rootDirectory string, logger logging.Logger) *Registrar {
	return &Registrar{
		config:        config,
		rootDirectory: rootDirectory,
		logger:        logger,
	}
}

// Register replaces the cron file with the configured tasks. The file is
// written next to its destination and renamed into place.
func (r *Registrar) Register(ctx context.Context) error {
	content, err := Render(r.config, r.rootDirectory)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.config.CronFile)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.config.CronFile)+"-*")
	if err != nil {
		return errors.NewIOError("failed to create cron file", err).WithContext("cron_file", r.config.CronFile)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return errors.NewIOError("failed to write cron file", err).WithContext("cron_file", r.config.CronFile)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return errors.NewIOError("failed to set cron file mode", err).WithContext("cron_file", r.config.CronFile)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError("failed to write cron file", err).WithContext("cron_file", r.config.CronFile)
	}
	if err := os.Rename(tmp.Name(), r.config.CronFile); err != nil {
		return errors.NewIOError("failed to install cron file", err).WithContext("cron_file", r.config.CronFile)
	}

	for _, task := range r.config.Tasks {
		r.logger.Infof("Scheduled task registered, name: %s, schedule: %s", task.Name, task.Schedule)
	}
	return nil
}

// Render produces the cron.d file content after validating every task.
func Render(config Config, rootDirectory string) ([]byte, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	if strings.ContainsAny(rootDirectory, "\r\n") {
		return nil, errors.NewValidationError("engine root directory cannot contain line breaks", nil)
	}

	var buf bytes.Buffer
	buf.WriteString("# Managed by watchadctl --install. Changes are overwritten on the next install.\n")
	buf.WriteString("SHELL=/bin/sh\n")
	buf.WriteString("PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin\n")
	fmt.Fprintf(&buf, "%s=%s\n", EngineDirVariable, rootDirectory)
	for _, task := range config.Tasks {
		fmt.Fprintf(&buf, "\n# %s\n", task.Name)
		fmt.Fprintf(&buf, "%s %s %s\n", task.Schedule, config.User, task.Command)
	}
	return buf.Bytes(), nil
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func ValidateConfig(config Config) error {
	if config.CronFile == "" {
		return errors.NewValidationError("cron file path is required", nil)
	}
	if !filepath.IsAbs(config.CronFile) {
		return errors.NewValidationError("cron file path must be absolute: "+config.CronFile, nil)
	}
	if config.User == "" || strings.ContainsAny(config.User, " \t\r\n") {
		return errors.NewValidationError("cron user must be a single word", nil)
	}

	seen := make(map[string]bool, len(config.Tasks))
	for i, task := range config.Tasks {
		if err := ValidateTask(task); err != nil {
			return errors.NewValidationError(fmt.Sprintf("invalid task at index %d", i), err).WithContext("task", task.Name)
		}
		if seen[task.Name] {
			return errors.NewValidationError("duplicate task name: "+task.Name, nil)
		}
		seen[task.Name] = true
	}
	return nil
}

func ValidateTask(task Task) error {
	if task.Name == "" {
		return errors.NewValidationError("task name is required", nil)
	}
	for _, char := range task.Name {
		if !isValidNameChar(char) {
			return errors.NewValidationError("task name contains invalid characters: only letters, numbers, hyphens, and underscores are allowed", nil)
		}
	}
	if _, err := parser.Parse(task.Schedule); err != nil {
		return errors.NewValidationError("invalid schedule: "+task.Schedule, err)
	}
	if strings.TrimSpace(task.Command) == "" {
		return errors.NewValidationError("task command is required", nil)
	}
	if strings.ContainsAny(task.Command, "\r\n") {
		return errors.NewValidationError("task command cannot contain line breaks", nil)
	}
	return nil
}

func isValidNameChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '_'
}
