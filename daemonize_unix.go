//go:build unix

package daemonize

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// lockFDEnvVar carries the inherited lock descriptor number across
// re-exec stages.
const lockFDEnvVar = "_DAEMONIZE_LOCK_FD"

// start dispatches on the bootstrap stage this process is in. The Go
// runtime cannot fork without exec, so the classic double fork is
// rendered as two re-execs of the same binary: stage 1 is the session
// leader (fork #1 + setsid), stage 2 the final daemon (fork #2).
func (d *Daemon) start() error {
	switch stage := os.Getenv(stageEnvVar); stage {
	case "":
		return d.startFront()
	case "1":
		return d.startSessionLeader()
	case "2":
		return d.startFinal()
	default:
		return stageErr(StageFork, "", ErrSpawn, fmt.Errorf("unexpected stage %q", stage))
	}
}

// startFront runs in the original invocation: validate, acquire the
// instance lock, detect the mode, and either stay in the foreground
// under supervision or begin the detachment sequence. The mode is
// fixed here, before any fork decision: a process already supervised
// by a service manager must never daemonize itself, since the double
// fork would sever the supervision relationship and orphan the process
// from the manager's tree.
func (d *Daemon) startFront() error {
	if err := d.validate(); err != nil {
		return err
	}

	lock, err := d.lock(d.identity())
	if err != nil {
		return err
	}

	if socket := notifySocket(); socket != "" {
		return d.runSupervised(lock, socket)
	}

	return d.spawnSessionLeader(lock)
}

// spawnSessionLeader performs fork #1: it relaunches the executable in
// a new session with the configured sinks bound and the held lock
// descriptor inherited, then exits the original invocation with
// status 0.
func (d *Daemon) spawnSessionLeader(lock *InstanceLock) error {
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

	bind := func(s Stdio, std *os.File, forRead bool) (*os.File, error) {
		f, own, err := s.open(forRead)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return std, nil
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

	stdin, err := bind(d.stdin, os.Stdin, true)
	if err != nil {
		return abort(StageStdio, ErrStdioRedirect, err)
	}
	stdout, err := bind(d.stdout, os.Stdout, false)
	if err != nil {
		return abort(StageStdio, ErrStdioRedirect, err)
	}
	stderr, err := bind(d.stderr, os.Stderr, false)
	if err != nil {
		return abort(StageStdio, ErrStdioRedirect, err)
	}

	env := buildEnviron(os.Environ(), d.clearEnv, d.env)
	env = append(env, stageEnvVar+"=1", lockFDEnvVar+"=3")

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = env
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{lock.lockFile()}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return abort(StageFork, ErrSpawn, err)
	}

	// The original invocation's job is done; the lock lives on in the
	// inherited descriptor.
	closeOwned()
	d.exit(0)
	return nil
}

// startSessionLeader runs as the intermediate session leader, already
// detached from the controlling terminal. It performs fork #2 and
// exits, so the final daemon is not a session leader and can never
// reacquire a controlling terminal.
func (d *Daemon) startSessionLeader() error {
	exe, err := os.Executable()
	if err != nil {
		return stageErr(StageFork, "", ErrSpawn, err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = replaceEnv(os.Environ(), stageEnvVar, "2")
	// Streams were bound to the configured sinks at the first spawn.
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{os.NewFile(3, "lock")}

	if err := cmd.Start(); err != nil {
		d.logger.Error("final stage spawn failed", "error", err)
		return stageErr(StageFork, exe, ErrSpawn, err)
	}

	d.exit(0)
	return nil
}

// startFinal runs in the final daemon process. It adopts the inherited
// lock and executes the identity-establishing gates.
func (d *Daemon) startFinal() error {
	fdStr := os.Getenv(lockFDEnvVar)
	fd, err := strconv.Atoi(fdStr)
	if err != nil || fd < 3 {
		return stageErr(StageLock, "", ErrLockIO,
			fmt.Errorf("bad inherited lock descriptor %q", fdStr))
	}
	lock := lockFromFD(d.identity(), uintptr(fd))

	_ = os.Unsetenv(stageEnvVar)
	_ = os.Unsetenv(lockFDEnvVar)

	return d.commit(lock, "")
}

// runSupervised is the foreground path: no re-exec at all. The
// environment and streams are adjusted in place, then the usual gates
// run, followed by the readiness handshake.
func (d *Daemon) runSupervised(lock *InstanceLock, socket string) error {
	if err := applyEnviron(d.clearEnv, d.env); err != nil {
		lock.Release()
		return err
	}
	if err := d.redirectStdio(); err != nil {
		lock.Release()
		return err
	}
	return d.commit(lock, socket)
}

// redirectStdio rebinds the standard descriptors in place via dup2
func (d *Daemon) redirectStdio() error {
	streams := []struct {
		s       Stdio
		target  int
		forRead bool
	}{
		{d.stdin, 0, true},
		{d.stdout, 1, false},
		{d.stderr, 2, false},
	}

	for _, st := range streams {
		f, owned, err := st.s.open(st.forRead)
		if err != nil {
			return stageErr(StageStdio, st.s.String(), ErrStdioRedirect, err)
		}
		if f == nil {
			continue
		}
		if int(f.Fd()) != st.target {
			if err := d.sys.Dup2(int(f.Fd()), st.target); err != nil {
				if owned {
					_ = f.Close()
				}
				return stageErr(StageStdio, f.Name(), ErrStdioRedirect, err)
			}
		}
		if owned {
			_ = f.Close()
		}
	}
	return nil
}

// commit executes the identity-establishing gates in fixed order:
// umask, chdir, chroot, privilege drop, pid record, privileged action,
// readiness notification. Any failure releases the lock and removes
// whatever was created; the security-relevant steps are all-or-nothing.
func (d *Daemon) commit(lock *InstanceLock, socket string) error {
	fail := func(err error) error {
		d.logger.Error("bootstrap aborted", "error", err)
		lock.Release()
		return err
	}

	// Resolved before chroot: name lookups need the original root.
	uid, gid, err := d.resolveDropIdentity()
	if err != nil {
		return fail(stageErr(StagePrivilegeDrop, "", ErrPrivilegeDrop, err))
	}

	d.sys.Umask(d.umask)

	if err := d.sys.Chdir(d.directory); err != nil {
		return fail(stageErr(StageEnv, d.directory, ErrInvalidConfig, err))
	}

	if d.chroot != "" {
		// Strictly before the privilege drop: dropping first would
		// leave insufficient permission to chroot, and chrooting as an
		// unprivileged process is a known escalation hazard.
		if err := d.sys.Chroot(d.chroot); err != nil {
			return fail(stageErr(StageChroot, d.chroot, ErrChroot, err))
		}
		if err := d.sys.Chdir("/"); err != nil {
			return fail(stageErr(StageChroot, d.chroot, ErrChroot, err))
		}
	}

	if err := d.dropPrivileges(uid, gid); err != nil {
		return fail(err)
	}

	var pf *PIDFile
	if d.pidFile != "" {
		pf = NewPIDFile(d.pidFile)
		if err := pf.Write(os.Getpid()); err != nil {
			return fail(&StageError{Stage: StagePIDFile, Path: d.pidFile, Err: err})
		}
		if d.chownPID && (uid >= 0 || gid >= 0) {
			if err := chownPIDFile(d.pidFile, uid, gid); err != nil {
				d.logger.Warn("pid record chown failed",
					"path", d.pidFile, "error", err)
			}
		}
	}

	if err := d.runAction(); err != nil {
		if pf != nil {
			_ = pf.Remove()
		}
		lock.Release()
		d.logger.Error("privileged action failed", "error", err)
		return err
	}

	if socket != "" {
		if err := notifyReady(socket, os.Getpid(), d.readyStatus); err != nil {
			// Best effort: the manager may have moved on already.
			d.logger.Warn("readiness notification failed", "error", err)
		}
	}

	return nil
}
