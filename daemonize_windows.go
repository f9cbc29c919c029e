//go:build windows

package daemonize

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// start dispatches between the launching process and the spawned
// daemon. Windows has no fork: the daemon is a freshly spawned process
// image of the same executable, marked by the stage variable, with
// configuration re-derived from the same builder code in the child.
func (d *Daemon) start() error {
	if os.Getenv(stageEnvVar) == "2" {
		return d.startChild()
	}
	return d.startLauncher()
}

// startLauncher runs in the invoking process: validate, acquire the
// named mutex, compute the child environment, and spawn the detached,
// console-less daemon with the configured stdio handles bound. On
// success the launcher exits with status 0; its mutex handle is closed
// by the OS at exit, after the child has opened its own.
func (d *Daemon) startLauncher() error {
	if err := d.validate(); err != nil {
		return err
	}

	lock, err := d.lock(d.identity())
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		lock.Release()
		return stageErr(StageFork, "", ErrSpawn, err)
	}

	var owned []*os.File
	closeOwned := func() {
		for _, f := range owned {
			_ = f.Close()
		}
	}

	bind := func(s Stdio, forRead bool) (*os.File, error) {
		f, own, err := s.open(forRead)
		if err != nil {
			return nil, err
		}
		if own {
			owned = append(owned, f)
		}
		return f, nil
	}

	abort := func(stage Stage, sentinel, cause error) error {
		closeOwned()
		lock.Release()
		return stageErr(stage, exe, sentinel, cause)
	}

	stdin, err := bind(d.stdin, true)
	if err != nil {
		return abort(StageStdio, ErrStdioRedirect, err)
	}
	stdout, err := bind(d.stdout, false)
	if err != nil {
		return abort(StageStdio, ErrStdioRedirect, err)
	}
	stderr, err := bind(d.stderr, false)
	if err != nil {
		return abort(StageStdio, ErrStdioRedirect, err)
	}

	env := buildEnviron(os.Environ(), d.clearEnv, d.env)
	env = append(env, stageEnvVar+"=2")

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = env
	// Inherit falls back to the launcher's own console handles, which
	// a detached process only keeps for as long as the launcher lives.
	cmd.Stdin = orInheritStd(stdin, d.stdin, os.Stdin)
	cmd.Stdout = orInheritStd(stdout, d.stdout, os.Stdout)
	cmd.Stderr = orInheritStd(stderr, d.stderr, os.Stderr)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}

	if err := cmd.Start(); err != nil {
		return abort(StageFork, ErrSpawn, err)
	}

	closeOwned()
	d.exit(0)
	return nil
}

func orInheritStd(f *os.File, s Stdio, std *os.File) *os.File {
	if f != nil {
		return f
	}
	if s.mode == stdioInherit {
		return std
	}
	return nil
}

// startChild runs in the spawned daemon process. Stdio was bound by
// the launcher at spawn time; the child adopts the named mutex, moves
// to its working directory, runs the privileged action, and records
// its pid.
func (d *Daemon) startChild() error {
	_ = os.Unsetenv(stageEnvVar)

	lock, err := adoptInstanceLock(d.identity())
	if err != nil {
		d.logger.Error("instance lock adoption failed", "error", err)
		return err
	}

	fail := func(err error) error {
		d.logger.Error("bootstrap aborted", "error", err)
		lock.Release()
		return err
	}

	if err := d.sys.Chdir(d.directory); err != nil {
		return fail(stageErr(StageEnv, d.directory, ErrInvalidConfig, err))
	}

	if err := d.runAction(); err != nil {
		d.logger.Error("privileged action failed", "error", err)
		lock.Release()
		return err
	}

	if d.pidFile != "" {
		pf := NewPIDFile(d.pidFile)
		if err := pf.Write(os.Getpid()); err != nil {
			return fail(&StageError{Stage: StagePIDFile, Path: d.pidFile, Err: err})
		}
	}

	return nil
}
