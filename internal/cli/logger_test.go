package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/config"
)

func TestSelectLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		verbose  bool
		quiet    bool
		expected zerolog.Level
	}{
		{name: "default is info", expected: zerolog.InfoLevel},
		{name: "verbose is debug", verbose: true, expected: zerolog.DebugLevel},
		{name: "quiet is warn", quiet: true, expected: zerolog.WarnLevel},
		{name: "verbose wins over quiet", verbose: true, quiet: true, expected: zerolog.DebugLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, selectLevel(tc.verbose, tc.quiet))
		})
	}
}

func TestInitLoggerWithWriter(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger := InitLoggerWithWriter(false, false, buf)

	logger.Info().Str("component", "store").Msg("storage resolved")

	output := buf.String()
	assert.Contains(t, output, `"event":"storage resolved"`)
	assert.Contains(t, output, `"component":"store"`)
	assert.Contains(t, output, `"ts":`)
}

func TestInitLoggerWithWriter_Levels(t *testing.T) {
	t.Parallel()

	t.Run("info suppresses debug", func(t *testing.T) {
		t.Parallel()

		buf := new(bytes.Buffer)
		logger := InitLoggerWithWriter(false, false, buf)

		logger.Debug().Msg("noise")
		logger.Info().Msg("signal")

		assert.NotContains(t, buf.String(), "noise")
		assert.Contains(t, buf.String(), "signal")
	})

	t.Run("verbose passes debug", func(t *testing.T) {
		t.Parallel()

		buf := new(bytes.Buffer)
		logger := InitLoggerWithWriter(true, false, buf)

		logger.Debug().Msg("detail")

		assert.Contains(t, buf.String(), "detail")
	})

	t.Run("quiet suppresses info", func(t *testing.T) {
		t.Parallel()

		buf := new(bytes.Buffer)
		logger := InitLoggerWithWriter(false, true, buf)

		logger.Info().Msg("routine")
		logger.Warn().Msg("problem")

		assert.NotContains(t, buf.String(), "routine")
		assert.Contains(t, buf.String(), "problem")
	})
}

func TestInitLoggerWithWriter_FlagsSensitiveMessages(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger := InitLoggerWithWriter(false, false, buf)

	logger.Info().Msg("loaded key sk-test1234567890abcdefghij")

	assert.Contains(t, buf.String(), `"contains_filtered_data":true`)
}

func TestInitLoggerWithFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "taskwire.log")
	cfg := config.LogConfig{
		File:       logPath,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}

	logger := InitLoggerWithFile(false, false, cfg)
	logger.Info().Str("api_key", "sk-test1234567890abcdefghij").Msg("auth configured")
	CloseLogFile()

	data, err := os.ReadFile(logPath) //nolint:gosec // Test-controlled path
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "auth configured")
	assert.Contains(t, content, "[REDACTED]")
	assert.NotContains(t, content, "sk-test1234567890abcdefghij")
}

func TestInitLoggerWithFile_NoFileConfigured(t *testing.T) {
	// An empty file path keeps the logger console-only.
	logger := InitLoggerWithFile(false, false, config.LogConfig{})
	logger.Info().Msg("console only")
	CloseLogFile()
}
