package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	twerrors "github.com/taskwire/taskwire/internal/errors"
)

// testError is a custom error type used to test default branches
// in UserMessage and Actionable without matching any sentinel.
type testError struct {
	msg string
}

func (e testError) Error() string {
	return e.msg
}

func TestSentinelErrors_Existence(t *testing.T) {
	// Verify all sentinel errors exist and are non-nil
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrEmptyValue", twerrors.ErrEmptyValue},
		{"ErrTaskNotFound", twerrors.ErrTaskNotFound},
		{"ErrTaskExists", twerrors.ErrTaskExists},
		{"ErrSubtaskNotFound", twerrors.ErrSubtaskNotFound},
		{"ErrParentNotFound", twerrors.ErrParentNotFound},
		{"ErrPathTraversal", twerrors.ErrPathTraversal},
		{"ErrLockTimeout", twerrors.ErrLockTimeout},
		{"ErrSnapshotNotFound", twerrors.ErrSnapshotNotFound},
		{"ErrNothingToUndo", twerrors.ErrNothingToUndo},
		{"ErrNothingToRedo", twerrors.ErrNothingToRedo},
		{"ErrHistoryCorrupted", twerrors.ErrHistoryCorrupted},
		{"ErrUnknownIntent", twerrors.ErrUnknownIntent},
		{"ErrInvalidStatus", twerrors.ErrInvalidStatus},
		{"ErrInvalidPriority", twerrors.ErrInvalidPriority},
		{"ErrInputTooLarge", twerrors.ErrInputTooLarge},
		{"ErrNoLocalTasks", twerrors.ErrNoLocalTasks},
		{"ErrConfigNotFound", twerrors.ErrConfigNotFound},
		{"ErrInvalidOutputFormat", twerrors.ErrInvalidOutputFormat},
		{"ErrConflictingFlags", twerrors.ErrConflictingFlags},
	}

	for _, tc := range sentinels {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err, "%s should not be nil", tc.name)
			assert.NotEmpty(t, tc.err.Error(), "%s should have a message", tc.name)
		})
	}
}

func TestSentinelErrors_Messages(t *testing.T) {
	// Verify sentinel errors have lowercase messages per Go conventions
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrTaskNotFound", twerrors.ErrTaskNotFound, "task not found"},
		{"ErrSubtaskNotFound", twerrors.ErrSubtaskNotFound, "subtask not found"},
		{"ErrParentNotFound", twerrors.ErrParentNotFound, "parent subtask not found"},
		{"ErrPathTraversal", twerrors.ErrPathTraversal, "path traversal detected"},
		{"ErrLockTimeout", twerrors.ErrLockTimeout, "lock acquisition timeout"},
		{"ErrNothingToUndo", twerrors.ErrNothingToUndo, "nothing to undo"},
		{"ErrNothingToRedo", twerrors.ErrNothingToRedo, "nothing to redo"},
		{"ErrUnknownIntent", twerrors.ErrUnknownIntent, "unknown intent"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	// Ensure each sentinel error is unique and errors.Is() distinguishes them
	allErrors := []error{
		twerrors.ErrTaskNotFound,
		twerrors.ErrTaskExists,
		twerrors.ErrSubtaskNotFound,
		twerrors.ErrParentNotFound,
		twerrors.ErrPathTraversal,
		twerrors.ErrLockTimeout,
		twerrors.ErrNothingToUndo,
		twerrors.ErrNothingToRedo,
		twerrors.ErrSnapshotNotFound,
		twerrors.ErrUnknownIntent,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i == j {
				assert.ErrorIs(t, err1, err2, "error should match itself")
			} else {
				assert.NotErrorIs(t, err1, err2, "different errors should not match")
			}
		}
	}
}

func TestWrap_PreservesErrorChain(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"ErrTaskNotFound", twerrors.ErrTaskNotFound},
		{"ErrSubtaskNotFound", twerrors.ErrSubtaskNotFound},
		{"ErrLockTimeout", twerrors.ErrLockTimeout},
		{"ErrSnapshotNotFound", twerrors.ErrSnapshotNotFound},
		{"ErrNothingToUndo", twerrors.ErrNothingToUndo},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := twerrors.Wrap(tc.sentinel, "context message")

			require.Error(t, wrapped)
			require.ErrorIs(t, wrapped, tc.sentinel,
				"wrapped error should satisfy errors.Is() for %s", tc.name)
			assert.Contains(t, wrapped.Error(), "context message")
			assert.Contains(t, wrapped.Error(), tc.sentinel.Error())
		})
	}
}

func TestWrap_NilError(t *testing.T) {
	result := twerrors.Wrap(nil, "should not appear")
	assert.NoError(t, result, "Wrap(nil, msg) should return nil")
}

func TestWrap_MultipleWraps(t *testing.T) {
	// Test that errors.Is() works through multiple wrap levels
	wrapped1 := twerrors.Wrap(twerrors.ErrSnapshotNotFound, "first wrap")
	wrapped2 := twerrors.Wrap(wrapped1, "second wrap")
	wrapped3 := twerrors.Wrap(wrapped2, "third wrap")

	require.ErrorIs(t, wrapped3, twerrors.ErrSnapshotNotFound,
		"errors.Is should work through multiple wrap levels")
	assert.Contains(t, wrapped3.Error(), "first wrap")
	assert.Contains(t, wrapped3.Error(), "second wrap")
	assert.Contains(t, wrapped3.Error(), "third wrap")
}

func TestWrap_MessageFormat(t *testing.T) {
	wrapped := twerrors.Wrap(twerrors.ErrTaskNotFound, "loading TASK-001")

	// The format should be "msg: original error"
	expected := "loading TASK-001: task not found"
	assert.Equal(t, expected, wrapped.Error())
}

func TestWrapf_PreservesErrorChain(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
		format   string
		args     []any
	}{
		{"ErrTaskNotFound", twerrors.ErrTaskNotFound, "task %s failed", []any{"TASK-042"}},
		{"ErrSubtaskNotFound", twerrors.ErrSubtaskNotFound, "path %s in %s", []any{"0.1", "TASK-007"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := twerrors.Wrapf(tc.sentinel, tc.format, tc.args...)

			require.Error(t, wrapped)
			require.ErrorIs(t, wrapped, tc.sentinel,
				"wrapped error should satisfy errors.Is() for %s", tc.name)

			// Verify the formatted message is present
			expectedMsg := fmt.Sprintf(tc.format, tc.args...)
			assert.Contains(t, wrapped.Error(), expectedMsg)
		})
	}
}

func TestWrapf_NilError(t *testing.T) {
	result := twerrors.Wrapf(nil, "task %s", "TASK-001")
	assert.NoError(t, result, "Wrapf(nil, ...) should return nil")
}

func TestExitCode2Error(t *testing.T) {
	t.Run("wraps and unwraps", func(t *testing.T) {
		inner := twerrors.ErrConflictingFlags
		wrapped := twerrors.NewExitCode2Error(inner)

		require.Error(t, wrapped)
		assert.Equal(t, inner.Error(), wrapped.Error())
		assert.ErrorIs(t, wrapped, inner)
		assert.True(t, twerrors.IsExitCode2Error(wrapped))
	})

	t.Run("detects through wrapping", func(t *testing.T) {
		wrapped := twerrors.Wrap(twerrors.NewExitCode2Error(twerrors.ErrEmptyValue), "outer")
		assert.True(t, twerrors.IsExitCode2Error(wrapped))
	})

	t.Run("plain errors are not exit code 2", func(t *testing.T) {
		assert.False(t, twerrors.IsExitCode2Error(twerrors.ErrTaskNotFound))
		assert.False(t, twerrors.IsExitCode2Error(nil))
	})
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"task not found", twerrors.ErrTaskNotFound, "was not found"},
		{"lock timeout", twerrors.ErrLockTimeout, "lock"},
		{"wrapped sentinel", twerrors.Wrap(twerrors.ErrSubtaskNotFound, "handler"), "subtask"},
		{"unknown error falls through", testError{msg: "boom"}, "boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := twerrors.UserMessage(tc.err)
			assert.NotEmpty(t, msg)
			assert.Contains(t, msg, tc.contains)
		})
	}

	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, twerrors.UserMessage(nil))
	})
}

func TestActionable(t *testing.T) {
	t.Run("sentinel with action", func(t *testing.T) {
		msg, action := twerrors.Actionable(twerrors.ErrConfigNotFound)
		assert.NotEmpty(t, msg)
		assert.Contains(t, action, "taskwire init")
	})

	t.Run("sentinel without action", func(t *testing.T) {
		msg, action := twerrors.Actionable(twerrors.ErrNothingToRedo)
		assert.NotEmpty(t, msg)
		assert.Empty(t, action)
	})

	t.Run("unknown error", func(t *testing.T) {
		msg, action := twerrors.Actionable(fmt.Errorf("custom failure"))
		assert.Equal(t, "custom failure", msg)
		assert.Empty(t, action)
	})

	t.Run("nil error", func(t *testing.T) {
		msg, action := twerrors.Actionable(nil)
		assert.Empty(t, msg)
		assert.Empty(t, action)
	})
}
