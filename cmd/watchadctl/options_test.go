package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-watchad/pkg/config"
	"github.com/core-tools/hsu-watchad/pkg/errors"
	"github.com/core-tools/hsu-watchad/pkg/lifecycle"
	"github.com/core-tools/hsu-watchad/pkg/logging"
	"github.com/core-tools/hsu-watchad/pkg/logging/loggingtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, argv ...string) flagOptions {
	t.Helper()
	var opts flagOptions
	_, err := newParser(&opts).ParseArgs(argv)
	require.NoError(t, err)
	return opts
}

func TestRequest_Install(t *testing.T) {
	opts := parse(t, "--install", "-d", "corp.example.com", "-s", "dc01.corp.example.com", "-u", "peter", "-p", "s3cret")

	request, err := opts.request()

	require.NoError(t, err)
	assert.Equal(t, lifecycle.VerbInstall, request.Verb)
	assert.Equal(t, config.InstallationConfig{
		Domain:     "corp.example.com",
		LDAPServer: "dc01.corp.example.com",
		Username:   "peter",
		Password:   "s3cret",
	}, request.Installation)
}

func TestRequest_LongInstallFlags(t *testing.T) {
	opts := parse(t, "--install", "--domain=corp.example.com", "--ldap-server=10.0.0.1", "--domain-user=peter", "--domain-passwd=s3cret")

	request, err := opts.request()

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", request.Installation.LDAPServer)
	assert.Equal(t, "s3cret", request.Installation.Password)
}

func TestRequest_PartialInstallIsPassedThrough(t *testing.T) {
	opts := parse(t, "--install", "-d", "corp.example.com")

	request, err := opts.request()

	require.NoError(t, err)
	assert.Equal(t, lifecycle.VerbInstall, request.Verb)
	assert.True(t, errors.IsConfigurationError(request.Installation.Validate()))
}

func TestRequest_SingleVerbs(t *testing.T) {
	tests := map[string]lifecycle.Verb{
		"--check":   lifecycle.VerbCheck,
		"--start":   lifecycle.VerbStart,
		"--restart": lifecycle.VerbRestart,
		"--stop":    lifecycle.VerbStop,
		"--status":  lifecycle.VerbStatus,
	}

	for flag, verb := range tests {
		t.Run(flag, func(t *testing.T) {
			request, err := parse(t, flag, "--root", "/opt/watchad").request()

			require.NoError(t, err)
			assert.Equal(t, verb, request.Verb)
			assert.Equal(t, config.InstallationConfig{}, request.Installation)
		})
	}
}

func TestRequest_RejectsMissingOrMultipleVerbs(t *testing.T) {
	for _, argv := range [][]string{
		{},
		{"--root", "/opt/watchad"},
		{"--start", "--stop"},
		{"--install", "--status", "-d", "corp.example.com"},
	} {
		_, err := parse(t, argv...).request()

		require.Error(t, err)
		assert.True(t, errors.IsUsageError(err))
		assert.Equal(t, lifecycle.ExitFailure, lifecycle.ExitCodeFor(err))
	}
}

func recorderFuncs(recorder *loggingtest.Recorder) logging.LogFuncs {
	return logging.LogFuncs{
		Debugf: recorder.Debugf,
		Infof:  recorder.Infof,
		Warnf:  recorder.Warnf,
		Errorf: recorder.Errorf,
	}
}

func TestRun_UsageErrorsAreLoggedWithHelp(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		message string
	}{
		{name: "no_verb", argv: []string{}, message: "no action specified"},
		{name: "several_verbs", argv: []string{"--stop", "--status"}, message: "only one action may be given per run"},
		{name: "unknown_flag", argv: []string{"--unknown-flag"}, message: "Command line flags parsing failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := loggingtest.NewRecorder()
			out := &bytes.Buffer{}

			code := run(tt.argv, out, recorderFuncs(recorder))

			assert.Equal(t, lifecycle.ExitFailure, code)
			assert.True(t, recorder.Contains(logging.LogLevelError, tt.message), recorder.Messages(logging.LogLevelError))
			assert.Contains(t, out.String(), "Usage:")
			assert.Contains(t, out.String(), "--install")
		})
	}
}

func TestRun_PartialInstallRejectedBeforeConfig(t *testing.T) {
	recorder := loggingtest.NewRecorder()
	out := &bytes.Buffer{}

	code := run([]string{"--install", "-d", "corp.example.com", "--root", "/nonexistent/watchad", "--config", "/nonexistent/watchad.yaml"}, out, recorderFuncs(recorder))

	assert.Equal(t, lifecycle.ExitFailure, code)
	errorsLogged := recorder.Messages(logging.LogLevelError)
	require.Len(t, errorsLogged, 1)
	assert.Contains(t, errorsLogged[0], "missing: --ldap-server, --domain-user, --domain-passwd")
	assert.NotContains(t, errorsLogged[0], "Configuration failed")
	assert.NotContains(t, out.String(), "Usage:")
}

func TestRun_PasswordNeverLogged(t *testing.T) {
	recorder := loggingtest.NewRecorder()
	root := filepath.Join(t.TempDir(), "s3cret-missing")

	code := run([]string{"--check", "-p", "s3cret", "--root", root}, &bytes.Buffer{}, recorderFuncs(recorder))

	assert.Equal(t, lifecycle.ExitFailure, code)
	require.True(t, recorder.Contains(logging.LogLevelError, "***-missing"))
	for _, entry := range recorder.Entries() {
		assert.NotContains(t, entry.Message, "s3cret")
	}
}

func TestRun_HelpExitsZero(t *testing.T) {
	recorder := loggingtest.NewRecorder()
	out := &bytes.Buffer{}

	assert.Equal(t, lifecycle.ExitOK, run([]string{"--help"}, out, recorderFuncs(recorder)))
	assert.Contains(t, out.String(), "--domain-passwd")
	assert.Empty(t, recorder.Messages(logging.LogLevelError))
}
