// Package sequence runs named steps in a fixed order under an explicit failure policy.
//
// Bootstrap uses HaltOnFailure: later steps depend on side effects of earlier
// ones, so the first failure stops the run. Stopping the engine uses
// ContinueOnFailure: every step is attempted and all failures are reported.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"
)

type FailurePolicy string

const (
	HaltOnFailure     FailurePolicy = "halt-on-failure"
	ContinueOnFailure FailurePolicy = "continue-on-failure"
)

type StepFunc func(ctx context.Context) error

type Step struct {
	Name string
	Run  StepFunc
}

// StepOutcome records what happened to one step.
type StepOutcome struct {
	Name     string
	Executed bool
	Err      error
	Duration time.Duration
}

type Report struct {
	Sequence string
	Outcomes []StepOutcome
}

// Failed returns the outcomes of executed steps that returned an error.
func (r Report) Failed() []StepOutcome {
	var failed []StepOutcome
	for _, outcome := range r.Outcomes {
		if outcome.Executed && outcome.Err != nil {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// Executed returns the names of the steps that ran, in order.
func (r Report) Executed() []string {
	var names []string
	for _, outcome := range r.Outcomes {
		if outcome.Executed {
			names = append(names, outcome.Name)
		}
	}
	return names
}

type Sequence struct {
	name   string
	policy FailurePolicy
	steps  []Step
	logger logging.Logger
}

func New(name string, policy FailurePolicy, steps []Step, logger logging.Logger) *Sequence {
	return &Sequence{
		name:   name,
		policy: policy,
		steps:  steps,
		logger: logger,
	}
}

func (s *Sequence) Name() string {
	return s.name
}

func (s *Sequence) Policy() FailurePolicy {
	return s.policy
}

// Steps returns the step names in execution order.
func (s *Sequence) Steps() []string {
	names := make([]string, len(s.steps))
	for i, step := range s.steps {
		names[i] = step.Name
	}
	return names
}

// Run executes the steps. Under HaltOnFailure the returned error is the first
// step failure; under ContinueOnFailure it is an ErrorCollection of all of them.
func (s *Sequence) Run(ctx context.Context) (Report, error) {
	report := Report{Sequence: s.name, Outcomes: make([]StepOutcome, len(s.steps))}
	for i, step := range s.steps {
		report.Outcomes[i] = StepOutcome{Name: step.Name}
	}

	failures := errors.NewErrorCollection()
	total := len(s.steps)

	for i, step := range s.steps {
		s.logger.Infof("[%s] step %d/%d: %s", s.name, i+1, total, step.Name)

		started := time.Now()
		err := step.Run(ctx)
		report.Outcomes[i].Executed = true
		report.Outcomes[i].Err = err
		report.Outcomes[i].Duration = time.Since(started)

		if err == nil {
			s.logger.Infof("[%s] step %s done, elapsed: %v", s.name, step.Name, report.Outcomes[i].Duration)
			continue
		}

		s.logger.Errorf("[%s] step %s failed: %v", s.name, step.Name, err)
		stepErr := fmt.Errorf("%s: %w", step.Name, err)

		if s.policy == HaltOnFailure {
			if i+1 < total {
				s.logger.Warnf("[%s] halting, %d step(s) not executed", s.name, total-i-1)
			}
			return report, stepErr
		}
		failures.Add(stepErr)
	}

	return report, failures.ToError()
}
