package cli

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskwire/taskwire/internal/errors"
)

func TestValidOutputFormats(t *testing.T) {
	t.Parallel()

	formats := ValidOutputFormats()
	assert.Contains(t, formats, OutputText)
	assert.Contains(t, formats, OutputJSON)
	assert.Len(t, formats, 2)
}

func TestIsValidOutputFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		valid  bool
	}{
		{OutputText, true},
		{OutputJSON, true},
		{"yaml", false},
		{"JSON", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("format %q", tc.format), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.valid, IsValidOutputFormat(tc.format))
		})
	}
}

func TestExitCodeForError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: ExitSuccess,
		},
		{
			name:     "generic error",
			err:      stderrors.New("something broke"),
			expected: ExitError,
		},
		{
			name:     "json error output",
			err:      errors.ErrJSONErrorOutput,
			expected: ExitError,
		},
		{
			name:     "explicit exit code 2",
			err:      errors.NewExitCode2Error(stderrors.New("bad input")),
			expected: ExitInvalidInput,
		},
		{
			name:     "wrapped exit code 2",
			err:      fmt.Errorf("context: %w", errors.NewExitCode2Error(stderrors.New("bad input"))),
			expected: ExitInvalidInput,
		},
		{
			name:     "invalid output format",
			err:      fmt.Errorf("%w: %q", errors.ErrInvalidOutputFormat, "xml"),
			expected: ExitInvalidInput,
		},
		{
			name:     "unknown flag",
			err:      stderrors.New("unknown flag: --bogus"),
			expected: ExitInvalidInput,
		},
		{
			name:     "unknown shorthand flag",
			err:      stderrors.New(`unknown shorthand flag: 'z' in -z`),
			expected: ExitInvalidInput,
		},
		{
			name:     "flag needs argument",
			err:      stderrors.New("flag needs an argument: --output"),
			expected: ExitInvalidInput,
		},
		{
			name:     "invalid argument",
			err:      stderrors.New(`invalid argument "x" for "--verbose" flag`),
			expected: ExitInvalidInput,
		},
		{
			name:     "mutually exclusive flags",
			err:      stderrors.New("if any flags in the group [verbose quiet] are set none of the others can be"),
			expected: ExitInvalidInput,
		},
		{
			name:     "unknown command",
			err:      stderrors.New(`unknown command "frobnicate" for "taskwire"`),
			expected: ExitInvalidInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ExitCodeForError(tc.err))
		})
	}
}
