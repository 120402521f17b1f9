package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/justapithecus/spiral/spiral"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", fmt.Errorf("get: %w", spiral.ErrNotFound), ExitNotFound},
		{"exists", spiral.ErrPathExists, ExitConflict},
		{"invalid option", &spiral.OptionError{Option: spiral.OptionRegion, Value: "x", Reason: "bad"}, ExitConfig},
		{"invalid path", spiral.ErrInvalidPath, ExitInput},
		{"other", errors.New("boom"), ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ue := Classify("Cannot do it", tt.err)
			assert.Equal(t, tt.code, ue.ExitCode)
			assert.ErrorIs(t, ue, tt.err)
			assert.NotEmpty(t, ue.Cause)
		})
	}
}

func TestClassify_PassesUserErrorThrough(t *testing.T) {
	orig := NewInputError("Missing key", "no key given", "spiral get <key>")
	assert.Same(t, orig, Classify("ignored", fmt.Errorf("wrapped: %w", orig)))
}

func TestUserError_Format(t *testing.T) {
	ue := NewConfigError("Cannot load config", "Check the path", errors.New("no such file"))

	got := ue.Format(true)
	assert.Equal(t, "Error: Cannot load config\nCause: no such file\nFix:   Check the path\n", got)
	assert.Equal(t, "Cannot load config: no such file", ue.Error())
}

func TestUserError_FormatOmitsEmptyLines(t *testing.T) {
	ue := &UserError{Message: "Just a message", ExitCode: ExitInternal}
	assert.Equal(t, "Error: Just a message\n", ue.Format(true))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, ExitSuccess, Report(&buf, nil, true))
	assert.Empty(t, buf.String())

	assert.Equal(t, ExitNetwork, Report(&buf, NewNetworkError("Cannot reach store", "", errors.New("timeout")), true))
	assert.Contains(t, buf.String(), "Cause: timeout")

	buf.Reset()
	assert.Equal(t, ExitInternal, Report(&buf, errors.New("plain"), true))
	assert.Contains(t, buf.String(), "Error: Unexpected failure")
}
