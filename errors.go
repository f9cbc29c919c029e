package daemonize

import (
	"errors"
	"fmt"
)

// Common errors returned by bootstrap operations
var (
	// ErrAlreadyRunning indicates another live instance holds the lock
	// for the same identity
	ErrAlreadyRunning = errors.New("daemonize: already running")

	// ErrLockIO indicates the lock object could not be created or opened
	ErrLockIO = errors.New("daemonize: lock unavailable")

	// ErrSpawn indicates a detachment stage could not be spawned
	ErrSpawn = errors.New("daemonize: spawn failed")

	// ErrChroot indicates the root directory change failed
	ErrChroot = errors.New("daemonize: chroot failed")

	// ErrPrivilegeDrop indicates the user/group transition failed
	ErrPrivilegeDrop = errors.New("daemonize: privilege drop failed")

	// ErrStdioRedirect indicates a standard stream could not be rebound
	ErrStdioRedirect = errors.New("daemonize: stdio redirect failed")

	// ErrActionFailed indicates the privileged action returned an error
	// or panicked
	ErrActionFailed = errors.New("daemonize: privileged action failed")

	// ErrNotify indicates the readiness datagram could not be sent.
	// This error is non-fatal: the bootstrap logs it and keeps running.
	ErrNotify = errors.New("daemonize: readiness notification failed")

	// ErrInvalidConfig indicates the configuration failed validation
	ErrInvalidConfig = errors.New("daemonize: invalid configuration")

	// ErrInvalidPID indicates the pid record contains non-numeric or
	// non-positive data
	ErrInvalidPID = errors.New("daemonize: invalid pid record")
)

// Stage identifies a state of the bootstrap sequence
type Stage int

// Bootstrap stages, in execution order
const (
	StageConfig Stage = iota
	StageLock
	StageFork
	StageEnv
	StageStdio
	StageChroot
	StagePrivilegeDrop
	StagePIDFile
	StageAction
	StageNotify
)

// String returns the stage name
func (s Stage) String() string {
	switch s {
	case StageConfig:
		return "config"
	case StageLock:
		return "lock"
	case StageFork:
		return "fork"
	case StageEnv:
		return "env"
	case StageStdio:
		return "stdio"
	case StageChroot:
		return "chroot"
	case StagePrivilegeDrop:
		return "privilege-drop"
	case StagePIDFile:
		return "pid-file"
	case StageAction:
		return "privileged-action"
	case StageNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// StageError reports a failure in a specific bootstrap stage
type StageError struct {
	// Stage is the bootstrap stage that failed
	Stage Stage
	// Path is the file or socket path involved, if any
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *StageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("daemonize %s %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("daemonize %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, path string, sentinel, cause error) *StageError {
	if cause == nil {
		return &StageError{Stage: stage, Path: path, Err: sentinel}
	}
	return &StageError{Stage: stage, Path: path, Err: fmt.Errorf("%w: %v", sentinel, cause)}
}
