package daemonize

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// stageEnvVar marks which bootstrap stage a re-exec'd process is in.
// Absent in the original invocation.
const stageEnvVar = "_DAEMONIZE_STAGE"

// sysOps abstracts the process-identity syscalls performed by the
// final bootstrap stage so tests can observe ordering without root.
type sysOps interface {
	Umask(mask int)
	Chdir(dir string) error
	Chroot(dir string) error
	Setgid(gid int) error
	Setuid(uid int) error
	Dup2(oldfd, newfd int) error
}

// Daemon configures and launches a supervised background process. The
// zero value is not usable; construct with New. Configuration is
// immutable once Start has been called.
type Daemon struct {
	name        string
	directory   string
	pidFile     string
	stdin       Stdio
	stdout      Stdio
	stderr      Stdio
	clearEnv    bool
	env         map[string]string
	user        string
	group       string
	umask       int
	chroot      string
	chownPID    bool
	readyStatus string
	action      func() error
	logger      *slog.Logger

	// seams for tests
	lock lockProviderFunc
	sys  sysOps
	exit func(code int)
}

// lockProviderFunc acquires the single-instance lock for an identity.
// Tests substitute a fake implementation.
type lockProviderFunc func(identity string) (*InstanceLock, error)

// New creates a Daemon with default settings: working directory at the
// filesystem root, all streams discarded, umask 0o027, no pid file, no
// privilege transition.
//
// The name identifies the instance for single-instance locking. It may
// be empty, in which case the identity is derived from the executable
// path; an explicit name is recommended on Windows, where it forms the
// global mutex name.
func New(name string) *Daemon {
	return &Daemon{
		name:      name,
		directory: defaultDirectory,
		stdin:     Devnull(),
		stdout:    Devnull(),
		stderr:    Devnull(),
		env:       make(map[string]string),
		umask:     defaultUmask,
		logger:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
		lock:      acquireInstanceLock,
		sys:       defaultSysOps(),
		exit:      os.Exit,
	}
}

// WithPIDFile sets the path of the pid record. The record is written
// by the final daemon process only, after its identity is stable.
func (d *Daemon) WithPIDFile(path string) *Daemon {
	d.pidFile = path
	return d
}

// WithWorkingDirectory sets the daemon's working directory
func (d *Daemon) WithWorkingDirectory(dir string) *Daemon {
	d.directory = dir
	return d
}

// WithStdin configures the standard input binding
func (d *Daemon) WithStdin(s Stdio) *Daemon {
	d.stdin = s
	return d
}

// WithStdout configures the standard output binding
func (d *Daemon) WithStdout(s Stdio) *Daemon {
	d.stdout = s
	return d
}

// WithStderr configures the standard error binding
func (d *Daemon) WithStderr(s Stdio) *Daemon {
	d.stderr = s
	return d
}

// WithClearEnv controls whether the daemon starts from an empty
// environment instead of the inherited one. Explicit overrides set
// with WithEnv are applied either way.
func (d *Daemon) WithClearEnv(clear bool) *Daemon {
	d.clearEnv = clear
	return d
}

// WithEnv adds or overwrites an environment variable for the daemon
func (d *Daemon) WithEnv(key, value string) *Daemon {
	d.env[key] = value
	return d
}

// WithEnvOpt adds an environment variable only when value is non-empty
func (d *Daemon) WithEnvOpt(key, value string) *Daemon {
	if value != "" {
		d.env[key] = value
	}
	return d
}

// InheritEnv captures the current environment into the explicit
// overrides without displacing ones already set. Combine with
// WithClearEnv(true) to selectively keep variables.
func (d *Daemon) InheritEnv() *Daemon {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, exists := d.env[key]; !exists {
			d.env[key] = value
		}
	}
	return d
}

// WithUser sets the user the daemon drops to after chroot. Accepts a
// user name or a numeric uid. Unix only; ignored on Windows.
func (d *Daemon) WithUser(user string) *Daemon {
	d.user = user
	return d
}

// WithGroup sets the group the daemon drops to after chroot. Accepts a
// group name or a numeric gid. Unix only; ignored on Windows.
func (d *Daemon) WithGroup(group string) *Daemon {
	d.group = group
	return d
}

// WithUmask sets the daemon's file-creation mask. Unix only.
func (d *Daemon) WithUmask(mask int) *Daemon {
	d.umask = mask
	return d
}

// WithChroot sets a root directory the daemon changes into before
// dropping privileges. Unix only. Note that the pid file path and the
// working directory are interpreted inside the new root.
func (d *Daemon) WithChroot(path string) *Daemon {
	d.chroot = path
	return d
}

// WithChownPIDFile controls whether the pid record is chowned to the
// drop-target user and group. Only meaningful without a privilege
// drop or when the record ends up owned by someone else; failures are
// logged, not fatal. Unix only.
func (d *Daemon) WithChownPIDFile(chown bool) *Daemon {
	d.chownPID = chown
	return d
}

// WithReadyStatus sets an optional STATUS text appended to the
// readiness datagram in supervised mode.
func (d *Daemon) WithReadyStatus(status string) *Daemon {
	d.readyStatus = status
	return d
}

// WithPrivilegedAction sets the one-shot setup callback. It runs in
// the final daemon process after chroot, privilege drop and stdio
// redirection have committed, so it observes its final identity. A
// returned error or a panic aborts the bootstrap: the lock is
// released, the pid record removed, and the failure written to the
// redirected log sink.
func (d *Daemon) WithPrivilegedAction(action func() error) *Daemon {
	d.action = action
	return d
}

// WithLogger sets the logger used for bootstrap diagnostics. The
// default logs to standard error, which follows the stderr binding
// once redirected.
func (d *Daemon) WithLogger(logger *slog.Logger) *Daemon {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// Name returns the configured instance name, which may be empty
func (d *Daemon) Name() string {
	return d.name
}

// PIDFilePath returns the configured pid record path, if any
func (d *Daemon) PIDFilePath() string {
	return d.pidFile
}

// WorkingDirectory returns the configured working directory
func (d *Daemon) WorkingDirectory() string {
	return d.directory
}

// Environment returns a copy of the explicit environment overrides
func (d *Daemon) Environment() map[string]string {
	env := make(map[string]string, len(d.env))
	for k, v := range d.env {
		env[k] = v
	}
	return env
}

// Build validates the configuration without starting the daemon.
// Start performs the same validation.
func (d *Daemon) Build() (*Daemon, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Start performs the bootstrap. In manual mode on Unix and in the
// launching process on Windows, Start does not return on success: the
// process exits with status 0 once the detached daemon has been
// spawned. Only the final daemon process (or the supervised foreground
// process) returns from Start, with a nil error once it has reached
// the running state.
func (d *Daemon) Start() error {
	return d.start()
}

// identity returns the configured name, falling back to one derived
// from the executable path.
func (d *Daemon) identity() string {
	if d.name != "" {
		return d.name
	}
	return defaultIdentity()
}

func (d *Daemon) validate() error {
	if d.pidFile != "" {
		parent := filepath.Dir(d.pidFile)
		if info, err := os.Stat(parent); err != nil || !info.IsDir() {
			return stageErr(StageConfig, parent, ErrInvalidConfig,
				fmt.Errorf("pid file directory does not exist"))
		}
	}
	if d.directory == "" {
		return stageErr(StageConfig, "", ErrInvalidConfig,
			fmt.Errorf("working directory is empty"))
	}
	return nil
}

// runAction executes the privileged action, converting a panic into a
// logged fatal error so no abnormal termination path exits without a
// trace in the redirected sink.
func (d *Daemon) runAction() (err error) {
	if d.action == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("privileged action panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			err = stageErr(StageAction, "", ErrActionFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	if aerr := d.action(); aerr != nil {
		return stageErr(StageAction, "", ErrActionFailed, aerr)
	}
	return nil
}

// defaultIdentity derives an instance identity from the executable
// path when no name is configured.
func defaultIdentity() string {
	exe, err := os.Executable()
	if err != nil {
		return "daemon"
	}
	base := filepath.Base(exe)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
