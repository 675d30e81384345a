// Package herrors defines Headwind's typed error kinds (spec §7):
// Transient, Configuration, Invariant, Integrity and Fatal. Each wraps
// an underlying cause and supports errors.As/errors.Is through Unwrap.
package herrors

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// IgnoreConflict swallows a Kubernetes API conflict error, the usual
// outcome of an optimistic-concurrency race that a caller is about to
// retry anyway.
func IgnoreConflict(err error) error {
	if apierrors.IsConflict(err) {
		return nil
	}
	return err
}

// TransientError marks a retriable failure: cluster API conflicts,
// network timeouts, 5xx responses from a registry or Helm repo.
// Callers requeue with backoff rather than surfacing it upstream.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// ConfigurationError marks a malformed annotation, unknown policy
// token, or a Glob policy missing its pattern. Callers log, treat the
// policy as None for the pass, and requeue long; they never create an
// UpdateRequest from it.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *ConfigurationError) Unwrap() error  { return e.Err }

func Configuration(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigurationError{Op: op, Err: err}
}

// InvariantError marks an UpdateRequest state transition attempted from
// an illegal phase. It is the only error kind returned directly to an
// API caller.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *InvariantError) Unwrap() error  { return e.Err }

func Invariant(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InvariantError{Op: op, Err: err}
}

// IntegrityError marks unparseable persisted state, currently only the
// history annotation. Policy: overwrite, log, never fail the outer
// mutation.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *IntegrityError) Unwrap() error  { return e.Err }

func Integrity(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IntegrityError{Op: op, Err: err}
}

// FatalError marks a startup failure the process cannot recover from,
// such as being unable to construct a cluster client.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error  { return e.Err }

func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Op: op, Err: err}
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsConfiguration reports whether err (or anything it wraps) is a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

// IsInvariant reports whether err (or anything it wraps) is an InvariantError.
func IsInvariant(err error) bool {
	var i *InvariantError
	return errors.As(err, &i)
}
