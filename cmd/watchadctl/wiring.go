package main

import (
	"context"
	"io"
	"time"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	"github.com/core-tools/hsu-watchad/pkg/bootstrap"
	"github.com/core-tools/hsu-watchad/pkg/config"
	"github.com/core-tools/hsu-watchad/pkg/dependency"
	"github.com/core-tools/hsu-watchad/pkg/directory"
	"github.com/core-tools/hsu-watchad/pkg/docstore"
	"github.com/core-tools/hsu-watchad/pkg/lifecycle"
	"github.com/core-tools/hsu-watchad/pkg/logging"
	"github.com/core-tools/hsu-watchad/pkg/schedule"
	"github.com/core-tools/hsu-watchad/pkg/searchindex"
	"github.com/core-tools/hsu-watchad/pkg/supervisor"
)

const closeTimeout = 5 * time.Second

// newLogFuncs returns the backend selected in config and a flush function.
func newLogFuncs(cfg config.LogConfig) (logging.LogFuncs, func(), error) {
	if cfg.Backend == config.LogBackendStd {
		logger := sprintfLogging.NewStdSprintfLogger()
		return logging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		}, func() {}, nil
	}

	backend, err := logging.NewZapBackend(cfg.ZapConfig)
	if err != nil {
		return logging.LogFuncs{}, nil, err
	}
	return backend.Funcs(), func() { _ = backend.Sync() }, nil
}

// newController builds only the collaborators the verb touches, so stop and
// status never open connections to the data services.
func newController(ctx context.Context, cfg *config.Config, verb lifecycle.Verb, out io.Writer, funcs logging.LogFuncs) (*lifecycle.Controller, func(), error) {
	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	collaborators := lifecycle.Collaborators{
		Supervisor: supervisor.NewAdapter(cfg.Supervisor, logging.NewModuleLogger("supervisor", funcs)),
	}

	needsData := verb == lifecycle.VerbInstall || verb == lifecycle.VerbCheck ||
		verb == lifecycle.VerbStart || verb == lifecycle.VerbRestart
	if needsData {
		searchIndex, err := searchindex.NewClient(cfg.SearchIndex, logging.NewModuleLogger("search-index", funcs))
		if err != nil {
			return nil, cleanup, err
		}

		store, err := docstore.Connect(ctx, cfg.DocumentStore, logging.NewModuleLogger("document-store", funcs))
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			_ = store.Close(closeCtx)
		})

		collaborators.Checker = dependency.NewChecker(
			dependency.NewTemplateProbe(searchIndex, cfg.SearchIndex.Timeout),
			dependency.NewPingProbe("document-store", store, cfg.DocumentStore.Timeout),
			dependency.NewNATSProbe(cfg.MessageQueue),
			logging.NewModuleLogger("dependency", funcs))

		directoryLogger := logging.NewModuleLogger("directory", funcs)
		dial := func(settings docstore.LDAPSettings) (bootstrap.Directory, error) {
			client, err := directory.Dial(cfg.Directory, directory.Credentials{
				Server:   settings.Server,
				Username: settings.Username,
				Password: settings.Password,
			}, settings.Domain, directoryLogger)
			if err != nil {
				return nil, err
			}
			return client, nil
		}

		tasks := schedule.NewRegistrar(cfg.Schedule, cfg.RootDirectory, logging.NewModuleLogger("schedule", funcs))

		collaborators.Installer = bootstrap.NewInstaller(searchIndex, store, dial, tasks, bootstrap.Options{
			LearningPeriod:  cfg.Install.LearningPeriod,
			SensitiveGroups: cfg.Install.SensitiveGroups,
		}, logging.NewModuleLogger("install", funcs))
	}

	controller := lifecycle.NewController(collaborators, cfg.EngineGroup(), out,
		logging.NewModuleLogger("lifecycle", funcs))
	return controller, cleanup, nil
}
