//go:build unix

package daemonize

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// resolveDropIdentity resolves the configured user and group to
// numeric ids, returning -1 for unset ones. This must run before
// chroot: name lookups need the original root's account database.
func (d *Daemon) resolveDropIdentity() (uid, gid int, err error) {
	uid, gid = -1, -1

	if d.group != "" {
		gid, err = lookupGID(d.group)
		if err != nil {
			return -1, -1, err
		}
	}
	if d.user != "" {
		uid, err = lookupUID(d.user)
		if err != nil {
			return -1, -1, err
		}
	}
	return uid, gid, nil
}

// dropPrivileges irrevocably lowers the process identity. The group is
// set first: dropping the user first may remove the permission needed
// to change group.
func (d *Daemon) dropPrivileges(uid, gid int) error {
	if gid >= 0 {
		if err := d.sys.Setgid(gid); err != nil {
			return stageErr(StagePrivilegeDrop, d.group, ErrPrivilegeDrop, err)
		}
	}
	if uid >= 0 {
		if err := d.sys.Setuid(uid); err != nil {
			return stageErr(StagePrivilegeDrop, d.user, ErrPrivilegeDrop, err)
		}
	}
	return nil
}

// chownPIDFile hands the pid record to the drop target. Best effort:
// after the privilege drop the record is usually created by the target
// identity already, so failures are logged by the caller, not fatal.
func chownPIDFile(path string, uid, gid int) error {
	return os.Chown(path, uid, gid)
}

func lookupUID(name string) (int, error) {
	if u, err := user.Lookup(name); err == nil {
		return strconv.Atoi(u.Uid)
	}
	if u, err := user.LookupId(name); err == nil {
		return strconv.Atoi(u.Uid)
	}
	if id, err := strconv.Atoi(name); err == nil && id >= 0 {
		return id, nil
	}
	return -1, fmt.Errorf("unknown user %q", name)
}

func lookupGID(name string) (int, error) {
	if g, err := user.LookupGroup(name); err == nil {
		return strconv.Atoi(g.Gid)
	}
	if g, err := user.LookupGroupId(name); err == nil {
		return strconv.Atoi(g.Gid)
	}
	if id, err := strconv.Atoi(name); err == nil && id >= 0 {
		return id, nil
	}
	return -1, fmt.Errorf("unknown group %q", name)
}
