package sysquery

import (
	"errors"
	"fmt"
	"os/user"
)

// adminGroups are group names whose membership counts as administrator
// status, covering the common Linux sudo groups and the Windows and
// macOS conventions.
var adminGroups = []string{"sudo", "wheel", "adm", "admin", "root", "Administrators"}

// UserExists reports whether a user with the given username exists.
// An unknown user is a false result, not an error.
func UserExists(name string) (bool, error) {
	_, err := user.Lookup(name)
	if err == nil {
		return true, nil
	}
	var unknown user.UnknownUserError
	if errors.As(err, &unknown) {
		return false, nil
	}
	return false, fmt.Errorf("sysquery: lookup user %q: %w", name, err)
}

// GroupExists reports whether a group with the given name exists.
func GroupExists(name string) (bool, error) {
	_, err := user.LookupGroup(name)
	if err == nil {
		return true, nil
	}
	var unknown user.UnknownGroupError
	if errors.As(err, &unknown) {
		return false, nil
	}
	return false, fmt.Errorf("sysquery: lookup group %q: %w", name, err)
}

// UserInGroup reports whether the user is a member of the named group.
// Unknown user or unknown group is a false result, not an error.
func UserInGroup(username, group string) (bool, error) {
	u, err := user.Lookup(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return false, nil
		}
		return false, fmt.Errorf("sysquery: lookup user %q: %w", username, err)
	}

	g, err := user.LookupGroup(group)
	if err != nil {
		var unknown user.UnknownGroupError
		if errors.As(err, &unknown) {
			return false, nil
		}
		return false, fmt.Errorf("sysquery: lookup group %q: %w", group, err)
	}

	gids, err := u.GroupIds()
	if err != nil {
		return false, fmt.Errorf("sysquery: group ids for %q: %w", username, err)
	}
	for _, gid := range gids {
		if gid == g.Gid {
			return true, nil
		}
	}
	return false, nil
}

// IsAdmin reports whether the user belongs to any of the conventional
// administrator groups for the platform.
func IsAdmin(username string) (bool, error) {
	for _, g := range adminGroups {
		ok, err := UserInGroup(username, g)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
