//go:build unix

package daemonize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// InstanceLock is a held single-instance exclusion resource, backed by
// a non-blocking exclusive advisory lock on a file derived from the
// instance identity. Holding it is the sole authority that no other
// instance with the same identity is running. The kernel releases the
// lock when the last inherited descriptor closes, so a crashed holder
// never leaves the identity wedged.
type InstanceLock struct {
	identity string
	path     string
	file     *os.File
	released bool
}

// LockPath returns the advisory lock file path used for an identity.
// The file's content is ignored; only the lock state matters.
func LockPath(identity string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("daemonize-%s.lock", identity))
}

// acquireInstanceLock opens or creates the lock file for identity and
// attempts a non-blocking exclusive flock. A live holder elsewhere
// yields ErrAlreadyRunning; any other failure on the same call is
// ErrLockIO.
func acquireInstanceLock(identity string) (*InstanceLock, error) {
	path := LockPath(identity)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, stageErr(StageLock, path, ErrLockIO, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, stageErr(StageLock, path, ErrAlreadyRunning, nil)
		}
		return nil, stageErr(StageLock, path, ErrLockIO, err)
	}

	return &InstanceLock{identity: identity, path: path, file: f}, nil
}

// lockFromFD reconstructs the lock from a descriptor inherited across
// a re-exec stage. The flock is attached to the open file description,
// so the inherited descriptor holds the same lock the original
// invocation acquired; re-acquiring in the child would race with the
// still-alive parent.
func lockFromFD(identity string, fd uintptr) *InstanceLock {
	path := LockPath(identity)
	return &InstanceLock{
		identity: identity,
		path:     path,
		file:     os.NewFile(fd, path),
	}
}

// Identity returns the identity the lock was acquired for
func (l *InstanceLock) Identity() string {
	return l.identity
}

// Path returns the lock file path
func (l *InstanceLock) Path() string {
	return l.path
}

// lockFile exposes the descriptor for inheritance by a child stage
func (l *InstanceLock) lockFile() *os.File {
	return l.file
}

// Release unlocks and closes the lock. Idempotent; safe to call on
// any unwind path. Normal daemon exit does not need it: the operating
// system releases the flock on close.
func (l *InstanceLock) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	if l.file != nil {
		_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
		_ = l.file.Close()
		l.file = nil
	}
}
