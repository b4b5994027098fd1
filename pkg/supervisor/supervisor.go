// Package supervisor drives the external process supervisor that owns the
// engine's worker pool. Every operation is one blocking invocation of
// supervisord or supervisorctl; the supervisor's own exit code is reported
// back in a Result and never turned into a panic or process exit.
package supervisor

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"
)

// Environment passed to the supervisor; its config file expands them for child processes.
const (
	EnvEngineDir = "WATCHAD_ENGINE_DIR"
	EnvEngineNum = "WATCHAD_ENGINE_NUM"
)

const (
	OperationStart    = "start"
	OperationStop     = "stop"
	OperationShutdown = "shutdown"
	OperationStatus   = "status"
)

// Group is the worker pool under supervision, addressed only in aggregate.
type Group struct {
	RootDirectory string
	WorkerCount   int
}

type Config struct {
	SupervisordPath   string        `yaml:"supervisord_path"`
	SupervisorctlPath string        `yaml:"supervisorctl_path"`
	ConfigFile        string        `yaml:"config_file"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		SupervisordPath:   "supervisord",
		SupervisorctlPath: "supervisorctl",
		ConfigFile:        "supervisor.conf",
	}
}

// Result carries the outcome of one supervisor invocation.
type Result struct {
	Operation string
	ExitCode  int
	Output    string
	// Err is set when the command could not be run at all.
	Err error
}

func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// AsError converts a failed Result into a supervisor error, nil otherwise.
func (r Result) AsError() error {
	if r.OK() {
		return nil
	}
	if r.Err != nil {
		return errors.NewSupervisorError(r.Operation+" could not be invoked", r.Err).
			WithContext("operation", r.Operation)
	}
	return errors.NewSupervisorError(r.Operation+" exited with code "+strconv.Itoa(r.ExitCode), nil).
		WithContext("operation", r.Operation).
		WithContext("exit_code", r.ExitCode)
}

type Adapter interface {
	Start(ctx context.Context, group Group) Result
	Stop(ctx context.Context, group Group) Result
	// Shutdown terminates the supervisor itself; callers invoke it only after Stop.
	Shutdown(ctx context.Context, group Group) Result
	Status(ctx context.Context, rootDirectory string) Result
}

type adapter struct {
	config Config
	run    CommandRunner
	logger logging.Logger
}

func NewAdapter(config Config, logger logging.Logger) Adapter {
	return NewAdapterWithRunner(config, NewExecRunner(), logger)
}

func NewAdapterWithRunner(config Config, run CommandRunner, logger logging.Logger) Adapter {
	return &adapter{
		config: config,
		run:    run,
		logger: logger,
	}
}

func (a *adapter) Start(ctx context.Context, group Group) Result {
	a.logger.Infof("Starting the detection engine, root: %s, workers: %d", group.RootDirectory, group.WorkerCount)
	result := a.invoke(ctx, OperationStart, group, a.config.SupervisordPath, groupEnvironment(group), "-c", a.configPath(group.RootDirectory))
	if result.OK() {
		a.logger.Infof("Started!")
	} else {
		a.logger.Errorf("Start failed: %v", result.AsError())
	}
	return result
}

func (a *adapter) Stop(ctx context.Context, group Group) Result {
	a.logger.Infof("Stopping the detection engine, root: %s", group.RootDirectory)
	result := a.invoke(ctx, OperationStop, group, a.config.SupervisorctlPath, groupEnvironment(group), "-c", a.configPath(group.RootDirectory), "stop", "all")
	if result.OK() {
		a.logger.Infof("Stopped detection processes.")
	} else {
		a.logger.Errorf("Stop failed: %v", result.AsError())
	}
	return result
}

func (a *adapter) Shutdown(ctx context.Context, group Group) Result {
	result := a.invoke(ctx, OperationShutdown, group, a.config.SupervisorctlPath, groupEnvironment(group), "-c", a.configPath(group.RootDirectory), "shutdown")
	if result.OK() {
		a.logger.Infof("Supervisor shut down.")
	} else {
		a.logger.Errorf("Supervisor shutdown failed: %v", result.AsError())
	}
	return result
}

func (a *adapter) Status(ctx context.Context, rootDirectory string) Result {
	group := Group{RootDirectory: rootDirectory, WorkerCount: 1}
	env := []string{EnvEngineDir + "=" + rootDirectory}
	result := a.invoke(ctx, OperationStatus, group, a.config.SupervisorctlPath, env, "-c", a.configPath(rootDirectory), "status")
	if result.Err != nil {
		a.logger.Errorf("Status query failed: %v", result.AsError())
	} else {
		a.logger.Debugf("Status query exited with code %d", result.ExitCode)
	}
	return result
}

func (a *adapter) invoke(ctx context.Context, operation string, group Group, path string, env []string, args ...string) Result {
	if err := ValidateGroup(group); err != nil {
		return Result{Operation: operation, ExitCode: -1, Err: err}
	}

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	cmd := Command{
		Path: path,
		Args: args,
		Env:  env,
		Dir:  group.RootDirectory,
	}
	a.logger.Debugf("Invoking supervisor, operation: %s, command: %s %v", operation, cmd.Path, cmd.Args)

	result := a.run(ctx, cmd)
	result.Operation = operation
	return result
}

func (a *adapter) configPath(rootDirectory string) string {
	if filepath.IsAbs(a.config.ConfigFile) {
		return a.config.ConfigFile
	}
	return filepath.Join(rootDirectory, a.config.ConfigFile)
}

func groupEnvironment(group Group) []string {
	return []string{
		EnvEngineDir + "=" + group.RootDirectory,
		EnvEngineNum + "=" + strconv.Itoa(group.WorkerCount),
	}
}

// ValidateGroup rejects a group the supervisor could not be pointed at.
func ValidateGroup(group Group) error {
	if group.RootDirectory == "" {
		return errors.NewValidationError("engine root directory is required", nil)
	}
	if !filepath.IsAbs(group.RootDirectory) {
		return errors.NewValidationError("engine root directory must be absolute: "+group.RootDirectory, nil)
	}
	if group.WorkerCount < 1 {
		return errors.NewValidationError("worker count must be at least 1", nil).
			WithContext("worker_count", group.WorkerCount)
	}
	return nil
}
