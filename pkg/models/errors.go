package models

import (
	"fmt"
	"strings"
)

// TransportFailure distinguishes how a backend call failed
type TransportFailure string

const (
	FailureConnection TransportFailure = "connection"
	FailureTimeout    TransportFailure = "timeout"
	FailureStatus     TransportFailure = "status"
)

// TransportError is a failed call to the metrics or orchestration backend
type TransportError struct {
	Backend string
	Kind    TransportFailure
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError is a backend reply that could not be understood
type MalformedResponseError struct {
	Backend string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Backend, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NamingConventionError is an entity label that does not look like
// <workload>-<replica-suffix>-<hash-suffix>
type NamingConventionError struct {
	Label string
}

func (e *NamingConventionError) Error() string {
	return fmt.Sprintf("label %q does not follow the <workload>-<suffix>-<hash> convention", e.Label)
}

// CommandFailure is a mutating orchestration command that did not succeed
type CommandFailure struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandFailure) Error() string {
	msg := fmt.Sprintf("command %q failed (rc=%d)", strings.Join(e.Command, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandFailure) Unwrap() error { return e.Err }
