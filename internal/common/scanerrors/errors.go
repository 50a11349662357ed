// Package scanerrors contains the typed errors returned across package boundaries.
// Callers classify them with errors.As, so they should always be wrapped with errors.WithStack
// rather than formatted into a new error.
//
// If multiple errors occur in some function (e.g., validating a whole configuration file), that
// function should return an error of type multierror.Error from package
// github.com/hashicorp/go-multierror that encapsulates those individual errors.
package scanerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "measurementsPerRound"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrProvisioning is returned when the system under test could not be started, stopped or restarted.
type ErrProvisioning struct {
	Target string
	Action string // e.g., "start" or "restart"
	Cause  error
}

func (err *ErrProvisioning) Error() string {
	return fmt.Sprintf("failed to %s target %q: %s", err.Action, err.Target, err.Cause)
}

func (err *ErrProvisioning) Unwrap() error {
	return err.Cause
}

// ErrHandshake is returned when the initial exchange with a freshly provisioned target fails.
type ErrHandshake struct {
	Target  string
	Address string
	Cause   error
}

func (err *ErrHandshake) Error() string {
	return fmt.Sprintf("handshake with target %q at %s failed: %s", err.Target, err.Address, err.Cause)
}

func (err *ErrHandshake) Unwrap() error {
	return err.Cause
}

// ErrNoApplicableSubtask is returned when none of the configured subtasks applies to a target.
type ErrNoApplicableSubtask struct {
	Target string
}

func (err *ErrNoApplicableSubtask) Error() string {
	return fmt.Sprintf("no applicable subtask for target %q", err.Target)
}

// Category maps an error returned by a target job to the name of its failure category.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func Category(err error) string {
	if err == nil {
		return ""
	}
	{
		var e *ErrProvisioning
		if errors.As(err, &e) {
			return "provisioning"
		}
	}
	{
		var e *ErrHandshake
		if errors.As(err, &e) {
			return "handshake"
		}
	}
	{
		var e *ErrNoApplicableSubtask
		if errors.As(err, &e) {
			return "no-applicable-subtask"
		}
	}
	return "unexpected"
}
