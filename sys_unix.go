//go:build unix

package daemonize

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/axondata/go-daemonize/internal/unixfd"
)

const (
	// defaultDirectory is the working directory a daemon runs in when
	// none is configured.
	defaultDirectory = "/"

	// defaultUmask is a conservative file-creation mask: no group
	// write, no world access.
	defaultUmask = 0o027

	// platformModel names the detachment mechanism of this build
	platformModel = "double-fork/setsid"

	supervisedCapable = true
)

// realSysOps performs the identity-establishing syscalls of the final
// bootstrap stage.
type realSysOps struct{}

func defaultSysOps() sysOps { return realSysOps{} }

func (realSysOps) Umask(mask int) {
	unix.Umask(mask)
}

func (realSysOps) Chdir(dir string) error {
	return os.Chdir(dir)
}

func (realSysOps) Chroot(dir string) error {
	return unix.Chroot(dir)
}

func (realSysOps) Setgid(gid int) error {
	return unix.Setgid(gid)
}

func (realSysOps) Setuid(uid int) error {
	return unix.Setuid(uid)
}

func (realSysOps) Dup2(oldfd, newfd int) error {
	return unixfd.Dup2(oldfd, newfd)
}
