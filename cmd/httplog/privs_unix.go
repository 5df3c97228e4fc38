//go:build !windows

package main

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// dropPrivileges switches to group, then to user. Both names are looked up
// before either is applied. Empty names are skipped.
func dropPrivileges(userName, groupName string) error {
	var uid, gid = -1, -1

	if groupName != "" {
		grp, err := user.LookupGroup(groupName)
		if err != nil {
			return fmt.Errorf("%w: unable to find group id number for %q: %w", errPrivileges, groupName, err)
		}

		if gid, err = strconv.Atoi(grp.Gid); err != nil {
			return fmt.Errorf("%w: group %q: %w", errPrivileges, groupName, err)
		}
	}

	if userName != "" {
		usr, err := user.Lookup(userName)
		if err != nil {
			return fmt.Errorf("%w: unable to find user id number for %q: %w", errPrivileges, userName, err)
		}

		if uid, err = strconv.Atoi(usr.Uid); err != nil {
			return fmt.Errorf("%w: user %q: %w", errPrivileges, userName, err)
		}
	}

	if gid >= 0 {
		if err := unix.Setgid(gid); err != nil {
			return fmt.Errorf("%w: unable to set group id to %q: %w", errPrivileges, groupName, err)
		}
	}

	if uid >= 0 {
		if err := unix.Setuid(uid); err != nil {
			return fmt.Errorf("%w: unable to set user id to %q: %w", errPrivileges, userName, err)
		}
	}

	return nil
}
