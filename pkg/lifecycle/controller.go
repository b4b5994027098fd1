// Package lifecycle maps the operator's verb onto the installer, the
// dependency checker and the process supervisor, and turns the outcome into
// the process exit code.
package lifecycle

import (
	"context"
	"fmt"
	"io"

	"github.com/core-tools/hsu-watchad/pkg/config"
	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"
	"github.com/core-tools/hsu-watchad/pkg/sequence"
	"github.com/core-tools/hsu-watchad/pkg/supervisor"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitDependencyUnready is reported by start and restart when the check fails.
	ExitDependencyUnready = -1
)

const (
	StepStopWorkers        = "stop-workers"
	StepShutdownSupervisor = "shutdown-supervisor"
)

type DependencyChecker interface {
	CheckAll(ctx context.Context) bool
}

type Installer interface {
	Install(ctx context.Context, installation config.InstallationConfig) error
}

type Collaborators struct {
	Checker    DependencyChecker
	Installer  Installer
	Supervisor supervisor.Adapter
}

type Controller struct {
	checker    DependencyChecker
	installer  Installer
	supervisor supervisor.Adapter
	group      supervisor.Group
	out        io.Writer
	logger     logging.Logger
}

// NewController builds a controller for group. User-facing output such as the
// check verdict and the supervisor status goes to out; diagnostics go to logger.
func NewController(collaborators Collaborators, group supervisor.Group, out io.Writer, logger logging.Logger) *Controller {
	return &Controller{
		checker:    collaborators.Checker,
		installer:  collaborators.Installer,
		supervisor: collaborators.Supervisor,
		group:      group,
		out:        out,
		logger:     logger,
	}
}

// Run executes one verb and returns the process exit code.
func (c *Controller) Run(ctx context.Context, request Request) int {
	c.logger.Debugf("Run, verb: %s", request.Verb)

	switch request.Verb {
	case VerbInstall:
		return ExitCodeFor(c.Install(ctx, request.Installation))
	case VerbCheck:
		if c.Check(ctx) {
			return ExitOK
		}
		return ExitFailure
	case VerbStart:
		return ExitCodeFor(c.Start(ctx))
	case VerbRestart:
		return ExitCodeFor(c.Restart(ctx))
	case VerbStop:
		c.Stop(ctx)
		return ExitOK
	case VerbStatus:
		return c.Status(ctx)
	default:
		err := errors.NewUsageError(fmt.Sprintf("unknown action %q", request.Verb), nil)
		c.logger.Errorf("%v", err)
		return ExitCodeFor(err)
	}
}

func (c *Controller) Install(ctx context.Context, installation config.InstallationConfig) error {
	return c.installer.Install(ctx, installation)
}

// Check runs every dependency probe and prints the verdict.
func (c *Controller) Check(ctx context.Context) bool {
	ready := c.checker.CheckAll(ctx)
	if ready {
		fmt.Fprintln(c.out, "OK!")
	} else {
		fmt.Fprintln(c.out, "FAILED! The engine environment is not ready, see the log for details.")
	}
	return ready
}

// Start launches the worker pool once every dependency is ready. A failed
// check aborts before the supervisor is touched; a failed supervisor start is
// logged by the adapter and not escalated.
func (c *Controller) Start(ctx context.Context) error {
	if !c.checker.CheckAll(ctx) {
		err := errors.NewDependencyError("engine dependencies are not ready, start aborted", nil)
		c.logger.Errorf("%v", err)
		return err
	}

	c.supervisor.Start(ctx, c.group)
	return nil
}

// Stop stops the workers and then shuts the supervisor down. The shutdown
// runs whatever the stop returned.
func (c *Controller) Stop(ctx context.Context) sequence.Report {
	report, err := c.stopSequence().Run(ctx)
	if err != nil {
		c.logger.Warnf("Stop finished with failures: %v", err)
	}
	return report
}

func (c *Controller) Restart(ctx context.Context) error {
	c.logger.Infof("Restarting the detection engine")
	c.Stop(ctx)
	return c.Start(ctx)
}

// Status prints the supervisor's status output verbatim and returns its exit
// code, or ExitFailure when the query could not be run.
func (c *Controller) Status(ctx context.Context) int {
	result := c.supervisor.Status(ctx, c.group.RootDirectory)
	if result.Output != "" {
		io.WriteString(c.out, result.Output)
	}
	if result.Err != nil {
		return ExitFailure
	}
	return result.ExitCode
}

func (c *Controller) stopSequence() *sequence.Sequence {
	steps := []sequence.Step{
		{Name: StepStopWorkers, Run: func(ctx context.Context) error {
			return c.supervisor.Stop(ctx, c.group).AsError()
		}},
		{Name: StepShutdownSupervisor, Run: func(ctx context.Context) error {
			return c.supervisor.Shutdown(ctx, c.group).AsError()
		}},
	}
	return sequence.New("stop", sequence.ContinueOnFailure, steps, c.logger)
}

// ExitCodeFor maps a verb error to the process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	switch errors.TypeOf(err) {
	case errors.ErrorTypeDependency:
		return ExitDependencyUnready
	default:
		return ExitFailure
	}
}
