// Package bootstrap provisions the engine's persistent state in seven ordered
// steps. Each step assumes the side effects of the ones before it, so the run
// halts at the first failure. Nothing is rolled back; every step is a
// create-or-update and install can be re-run by hand.
package bootstrap

import (
	"context"
	"time"

	"github.com/core-tools/hsu-watchad/pkg/config"
	"github.com/core-tools/hsu-watchad/pkg/directory"
	"github.com/core-tools/hsu-watchad/pkg/docstore"
	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/logging"
	"github.com/core-tools/hsu-watchad/pkg/sequence"
)

// Step names, in execution order.
const (
	StepIndexTemplate     = "index-template"
	StepDirectorySettings = "directory-settings"
	StepDomainControllers = "domain-controllers"
	StepDefaultSettings   = "default-settings"
	StepSensitiveGroups   = "sensitive-groups"
	StepLearningEndTime   = "learning-end-time"
	StepScheduledTasks    = "scheduled-tasks"
)

type TemplateInstaller interface {
	EnsureTemplate(ctx context.Context) error
}

type SettingsStore interface {
	SaveLDAPSettings(ctx context.Context, settings docstore.LDAPSettings) error
	LoadLDAPSettings(ctx context.Context, domain string) (docstore.LDAPSettings, error)
	SaveDomainControllers(ctx context.Context, domain string, hosts []string) error
	SaveDefaultSettings(ctx context.Context, domain string, defaults map[string]interface{}) error
	SaveSensitiveGroups(ctx context.Context, domain string, groups []docstore.SensitiveGroup) error
	SaveLearningEndTime(ctx context.Context, endTime time.Time) error
}

type Directory interface {
	DomainControllers() ([]string, error)
	Groups(names []string) ([]directory.Group, []string, error)
	Close() error
}

// DirectoryDialer opens a directory session with stored settings.
type DirectoryDialer func(settings docstore.LDAPSettings) (Directory, error)

type TaskRegistrar interface {
	Register(ctx context.Context) error
}

type Options struct {
	LearningPeriod  time.Duration
	SensitiveGroups []string
	Now             func() time.Time
}

type Installer struct {
	templates TemplateInstaller
	settings  SettingsStore
	dial      DirectoryDialer
	tasks     TaskRegistrar
	options   Options
	logger    logging.Logger
}

func NewInstaller(templates TemplateInstaller, settings SettingsStore, dial DirectoryDialer, tasks TaskRegistrar, options Options, logger logging.Logger) *Installer {
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Installer{
		templates: templates,
		settings:  settings,
		dial:      dial,
		tasks:     tasks,
		options:   options,
		logger:    logger,
	}
}

// Install validates the parameters and runs every step. Incomplete
// parameters are rejected before any external system is touched.
func (i *Installer) Install(ctx context.Context, installation config.InstallationConfig) error {
	if err := installation.Validate(); err != nil {
		i.logger.Errorf("Install rejected: %v", err)
		return err
	}

	i.logger.Infof("Install the engine, domain: %s, ldap server: %s", installation.Domain, installation.LDAPServer)

	_, err := i.Sequence(installation).Run(ctx)
	if err != nil {
		i.logger.Errorf("Install failed, partial state is left in place: %v", err)
		return err
	}

	i.logger.Infof("Install finished, domain: %s", installation.Domain)
	return nil
}

// Sequence returns the install steps for installation without running them.
func (i *Installer) Sequence(installation config.InstallationConfig) *sequence.Sequence {
	domain := installation.Domain
	steps := []sequence.Step{
		{Name: StepIndexTemplate, Run: i.templates.EnsureTemplate},
		{Name: StepDirectorySettings, Run: func(ctx context.Context) error {
			return i.settings.SaveLDAPSettings(ctx, docstore.LDAPSettings{
				Domain:   domain,
				Server:   installation.LDAPServer,
				Username: installation.Username,
				Password: installation.Password,
			})
		}},
		{Name: StepDomainControllers, Run: func(ctx context.Context) error {
			return i.storeDomainControllers(ctx, domain)
		}},
		{Name: StepDefaultSettings, Run: func(ctx context.Context) error {
			return i.settings.SaveDefaultSettings(ctx, domain, DefaultSettings(i.options.LearningPeriod))
		}},
		{Name: StepSensitiveGroups, Run: func(ctx context.Context) error {
			return i.storeSensitiveGroups(ctx, domain)
		}},
		{Name: StepLearningEndTime, Run: func(ctx context.Context) error {
			endTime := i.options.Now().Add(i.options.LearningPeriod)
			i.logger.Infof("Learning ends at %s", endTime.UTC().Format(time.RFC3339))
			return i.settings.SaveLearningEndTime(ctx, endTime)
		}},
		{Name: StepScheduledTasks, Run: i.tasks.Register},
	}
	return sequence.New("install", sequence.HaltOnFailure, steps, i.logger)
}

func (i *Installer) openDirectory(ctx context.Context, domain string) (Directory, error) {
	settings, err := i.settings.LoadLDAPSettings(ctx, domain)
	if err != nil {
		return nil, err
	}
	return i.dial(settings)
}

func (i *Installer) storeDomainControllers(ctx context.Context, domain string) error {
	dir, err := i.openDirectory(ctx, domain)
	if err != nil {
		return err
	}
	defer dir.Close()

	hosts, err := dir.DomainControllers()
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return errors.NewNotFoundError("no domain controllers found for "+domain, nil)
	}
	i.logger.Infof("Domain controllers: %v", hosts)
	return i.settings.SaveDomainControllers(ctx, domain, hosts)
}

func (i *Installer) storeSensitiveGroups(ctx context.Context, domain string) error {
	dir, err := i.openDirectory(ctx, domain)
	if err != nil {
		return err
	}
	defer dir.Close()

	found, missing, err := dir.Groups(i.options.SensitiveGroups)
	if err != nil {
		return err
	}
	for _, name := range missing {
		i.logger.Warnf("Sensitive group not found in directory, skipped: %s", name)
	}
	if len(found) == 0 {
		return errors.NewNotFoundError("none of the sensitive groups exist in "+domain, nil)
	}

	groups := make([]docstore.SensitiveGroup, len(found))
	for idx, group := range found {
		groups[idx] = docstore.SensitiveGroup{Name: group.Name, DN: group.DN, SID: group.SID}
	}
	i.logger.Infof("Seeding %d sensitive group(s)", len(groups))
	return i.settings.SaveSensitiveGroups(ctx, domain, groups)
}

// DefaultSettings are the detection switches and thresholds written at install.
func DefaultSettings(learningPeriod time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"alarm_enabled":              true,
		"brute_force_threshold":      20,
		"brute_force_window_seconds": 300,
		"ignored_accounts":           []string{},
		"ignored_source_ips":         []string{},
		"learning_period_days":       int(learningPeriod / (24 * time.Hour)),
	}
}
