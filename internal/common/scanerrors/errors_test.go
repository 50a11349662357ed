package scanerrors

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	tests := map[string]struct {
		err      error
		expected string
	}{
		"nil": {
			err:      nil,
			expected: "",
		},
		"provisioning": {
			err:      errors.WithStack(&ErrProvisioning{Target: "a", Action: "start", Cause: fmt.Errorf("boom")}),
			expected: "provisioning",
		},
		"wrapped handshake": {
			err:      errors.WithMessage(errors.WithStack(&ErrHandshake{Target: "a", Address: "x:1", Cause: fmt.Errorf("eof")}), "target job"),
			expected: "handshake",
		},
		"no applicable subtask": {
			err:      &ErrNoApplicableSubtask{Target: "a"},
			expected: "no-applicable-subtask",
		},
		"other": {
			err:      fmt.Errorf("something else"),
			expected: "unexpected",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Category(tc.err))
		})
	}
}

func TestErrProvisioning_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := errors.WithStack(&ErrProvisioning{Target: "a", Action: "restart", Cause: cause})
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, `failed to restart target "a": connection refused`, errors.Cause(err).Error())
}

func TestErrInvalidArgument_Error(t *testing.T) {
	err := &ErrInvalidArgument{Name: "threads", Value: 0, Message: "must be positive"}
	assert.Equal(t, `value 0 is invalid for field "threads"; must be positive`, err.Error())
}
