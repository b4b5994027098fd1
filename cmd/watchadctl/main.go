package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/core-tools/hsu-watchad/pkg/config"
	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/lifecycle"
	"github.com/core-tools/hsu-watchad/pkg/logging"

	flags "github.com/jessevdk/go-flags"
)

func main() {
	// Used until the config file selects the real backend.
	backend, err := logging.NewZapBackend(logging.DefaultZapConfig())
	if err != nil {
		fmt.Printf("Logger setup failed: %v\n", err)
		os.Exit(lifecycle.ExitFailure)
	}

	code := run(os.Args[1:], os.Stdout, backend.Funcs())
	_ = backend.Sync()
	os.Exit(code)
}

// run executes one controller invocation. startup logs everything that
// happens before the config file is loaded.
func run(argv []string, out io.Writer, startup logging.LogFuncs) int {
	var opts flagOptions
	parser := newParser(&opts)
	_, err := parser.ParseArgs(argv)
	if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(out, flagsErr.Message)
		return lifecycle.ExitOK
	}

	var secrets []string
	if opts.Password != "" {
		secrets = append(secrets, opts.Password)
	}
	logger := logging.NewModuleLogger("watchadctl", logging.RedactFuncs(startup, secrets...))

	if err != nil {
		logger.Errorf("Command line flags parsing failed: %v", err)
		parser.WriteHelp(out)
		return lifecycle.ExitFailure
	}

	request, err := opts.request()
	if err == nil && request.Verb == lifecycle.VerbInstall {
		err = request.Installation.Validate()
	}
	if err != nil {
		logger.Errorf("%v", err)
		if errors.IsUsageError(err) {
			parser.WriteHelp(out)
		}
		return lifecycle.ExitCodeFor(err)
	}

	root, err := config.ResolveRoot(opts.Root)
	if err != nil {
		logger.Errorf("%v", err)
		return lifecycle.ExitCodeFor(err)
	}

	cfg, err := config.Load(root, opts.ConfigFile)
	if err == nil {
		err = config.ValidateConfig(cfg)
	}
	if err != nil {
		logger.Errorf("Configuration failed: %v", err)
		return lifecycle.ExitCodeFor(err)
	}

	funcs, flush, err := newLogFuncs(cfg.Log)
	if err != nil {
		logger.Errorf("Logger setup failed: %v", err)
		return lifecycle.ExitFailure
	}
	defer flush()
	funcs = logging.RedactFuncs(funcs, secrets...)

	logger = logging.NewModuleLogger("watchadctl", funcs)
	logger.Debugf("root: %s, verb: %s", root, request.Verb)

	ctx := context.Background()
	controller, cleanup, err := newController(ctx, cfg, request.Verb, out, funcs)
	defer cleanup()
	if err != nil {
		logger.Errorf("Failed to set up %s: %v", request.Verb, err)
		return lifecycle.ExitCodeFor(err)
	}

	return controller.Run(ctx, request)
}
