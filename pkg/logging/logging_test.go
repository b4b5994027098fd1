package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerPrefixesAndRoutesLevels(t *testing.T) {
	var got []string
	record := func(level string) LogFunc {
		return func(format string, args ...interface{}) {
			got = append(got, level+":"+fmt.Sprintf(format, args...))
		}
	}

	logger := NewLogger("module: test , ", LogFuncs{
		Debugf: record("debug"),
		Infof:  record("info"),
		Warnf:  record("warn"),
		Errorf: record("error"),
	})

	logger.Debugf("d %d", 1)
	logger.Infof("i %s", "x")
	logger.Warnf("w")
	logger.Errorf("e")
	logger.LogLevelf(LogLevelInfo, "lvl")

	assert.Equal(t, []string{
		"debug:module: test , d 1",
		"info:module: test , i x",
		"warn:module: test , w",
		"error:module: test , e",
		"info:module: test , lvl",
	}, got)
}

func TestNewLoggerMissingFuncsAreSkipped(t *testing.T) {
	logger := NewLogger("", LogFuncs{})
	assert.NotPanics(t, func() {
		logger.Errorf("nothing happens")
	})
	assert.NotPanics(t, func() {
		NewNopLogger().Infof("nothing happens")
	})
}

func TestNewZapBackend(t *testing.T) {
	tests := []struct {
		name      string
		config    ZapConfig
		shouldErr bool
	}{
		{name: "default", config: DefaultZapConfig()},
		{name: "json_stdout_debug", config: ZapConfig{Level: "debug", Format: "json", Output: "stdout"}},
		{name: "invalid_level", config: ZapConfig{Level: "loud"}, shouldErr: true},
		{name: "invalid_format", config: ZapConfig{Format: "xml"}, shouldErr: true},
		{name: "invalid_output", config: ZapConfig{Output: "/var/log/x"}, shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewZapBackend(tt.config)
			if tt.shouldErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			funcs := backend.Funcs()
			assert.NotNil(t, funcs.Infof)
			assert.NotNil(t, funcs.Errorf)
		})
	}
}

func TestNewModuleLogger(t *testing.T) {
	var got []string
	logger := NewModuleLogger("install", LogFuncs{
		Infof: func(format string, args ...interface{}) {
			got = append(got, fmt.Sprintf(format, args...))
		},
	})

	logger.Infof("step %d", 1)

	assert.Equal(t, []string{"module: install , step 1"}, got)
}

func TestRedactFuncs(t *testing.T) {
	var got []string
	record := func(format string, args ...interface{}) {
		got = append(got, fmt.Sprintf(format, args...))
	}
	var levels []int
	recordLevel := func(level int, format string, args ...interface{}) {
		levels = append(levels, level)
		got = append(got, fmt.Sprintf(format, args...))
	}

	t.Run("plain_funcs", func(t *testing.T) {
		got = nil
		logger := NewLogger("", RedactFuncs(LogFuncs{Infof: record, Errorf: record}, "s3cret", ""))

		logger.Infof("bind as %s with %s", "peter", "s3cret")
		logger.Errorf("bind failed: invalid credentials (s3cret%%)")
		logger.Warnf("dropped s3cret")

		assert.Equal(t, []string{
			"bind as peter with ***",
			"bind failed: invalid credentials (***%)",
		}, got)
	})

	t.Run("level_func", func(t *testing.T) {
		got = nil
		logger := NewLogger("p: ", RedactFuncs(LogFuncs{LogLevelf: recordLevel}, "s3cret"))

		logger.Warnf("password %q", "s3cret")

		assert.Equal(t, []string{`p: password "***"`}, got)
		assert.Equal(t, []int{LogLevelWarn}, levels)
	})

	t.Run("no_secrets_is_identity", func(t *testing.T) {
		got = nil
		funcs := RedactFuncs(LogFuncs{Infof: record}, "")

		NewLogger("", funcs).Infof("100%% %s", "s3cret")

		assert.Equal(t, []string{"100% s3cret"}, got)
	})
}
