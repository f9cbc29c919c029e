//go:build windows

package daemonize

import (
	"errors"
	"os"
)

const (
	defaultDirectory = `C:\`

	// umask has no Windows equivalent; the value is carried for API
	// compatibility and never applied.
	defaultUmask = 0o027

	// platformModel names the detachment mechanism of this build
	platformModel = "detached-process/named-mutex"

	supervisedCapable = false
)

var errNotSupported = errors.New("daemonize: not supported on windows")

// realSysOps implements the subset of sysOps that exists on Windows.
// The Unix-only transitions are never reached by the Windows
// sequencer.
type realSysOps struct{}

func defaultSysOps() sysOps { return realSysOps{} }

func (realSysOps) Umask(int) {}

func (realSysOps) Chdir(dir string) error {
	return os.Chdir(dir)
}

func (realSysOps) Chroot(string) error {
	return errNotSupported
}

func (realSysOps) Setgid(int) error {
	return errNotSupported
}

func (realSysOps) Setuid(int) error {
	return errNotSupported
}

func (realSysOps) Dup2(int, int) error {
	return errNotSupported
}
