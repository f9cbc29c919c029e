//go:build windows

package daemonize

import (
	"errors"

	"golang.org/x/sys/windows"
)

// mutexPrefix namespaces the global mutex objects created by this
// library.
const mutexPrefix = "Daemonize"

// InstanceLock is a held single-instance exclusion resource, backed by
// a named mutex in the global namespace. The object exists as long as
// any process holds a handle to it; the operating system destroys it
// when the last handle closes, so a crashed holder never leaves the
// identity wedged.
type InstanceLock struct {
	identity string
	handle   windows.Handle
	released bool
}

// MutexName returns the global named-mutex name used for an identity
func MutexName(identity string) string {
	return `Global\` + mutexPrefix + "_" + identity
}

// acquireInstanceLock creates the named mutex for identity. A creation
// result indicating the mutex already existed means another live
// instance holds it: ErrAlreadyRunning.
func acquireInstanceLock(identity string) (*InstanceLock, error) {
	name := MutexName(identity)

	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, stageErr(StageLock, name, ErrLockIO, err)
	}

	handle, err := windows.CreateMutex(nil, false, namep)
	if err != nil {
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			if handle != 0 {
				_ = windows.CloseHandle(handle)
			}
			return nil, stageErr(StageLock, name, ErrAlreadyRunning, nil)
		}
		return nil, stageErr(StageLock, name, ErrLockIO, err)
	}

	return &InstanceLock{identity: identity, handle: handle}, nil
}

// adoptInstanceLock opens a handle against the named mutex in the
// spawned daemon process. The launcher's handle is still live at this
// point, so an already-exists result is expected and keeps the object
// alive past the launcher's exit.
func adoptInstanceLock(identity string) (*InstanceLock, error) {
	name := MutexName(identity)

	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, stageErr(StageLock, name, ErrLockIO, err)
	}

	handle, err := windows.CreateMutex(nil, false, namep)
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return nil, stageErr(StageLock, name, ErrLockIO, err)
	}

	return &InstanceLock{identity: identity, handle: handle}, nil
}

// Identity returns the identity the lock was acquired for
func (l *InstanceLock) Identity() string {
	return l.identity
}

// Path returns the global mutex name
func (l *InstanceLock) Path() string {
	return MutexName(l.identity)
}

// Release closes the mutex handle. Idempotent; safe to call on any
// unwind path. Normal daemon exit does not need it: the operating
// system closes the handle when the process exits.
func (l *InstanceLock) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	if l.handle != 0 {
		_ = windows.CloseHandle(l.handle)
		l.handle = 0
	}
}
