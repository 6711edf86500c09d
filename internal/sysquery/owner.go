package sysquery

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// fileIDs returns the numeric owner uid and gid of a file.
func fileIDs(path string) (uid, gid uint32, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("sysquery: stat %s: %w", path, err)
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, fmt.Errorf("sysquery: stat %s: no unix ownership info", path)
	}
	return st.Uid, st.Gid, nil
}

// FileOwnerUID returns the numeric uid owning the file.
func FileOwnerUID(path string) (uint32, error) {
	uid, _, err := fileIDs(path)
	return uid, err
}

// FileOwnerGID returns the numeric gid of the file's group.
func FileOwnerGID(path string) (uint32, error) {
	_, gid, err := fileIDs(path)
	return gid, err
}

// FileOwner returns the user account owning the file.
func FileOwner(path string) (*user.User, error) {
	uid, _, err := fileIDs(path)
	if err != nil {
		return nil, err
	}
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return nil, fmt.Errorf("sysquery: lookup uid %d: %w", uid, err)
	}
	return u, nil
}

// FileGroup returns the group owning the file.
func FileGroup(path string) (*user.Group, error) {
	_, gid, err := fileIDs(path)
	if err != nil {
		return nil, err
	}
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return nil, fmt.Errorf("sysquery: lookup gid %d: %w", gid, err)
	}
	return g, nil
}

// FileOwnedByUser reports whether the file is owned by the named user.
// An unknown user is a false result, not an error; a missing file is
// an error (ownership of nothing is not answerable).
func FileOwnedByUser(path, username string) (bool, error) {
	u, err := user.Lookup(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return false, nil
		}
		return false, fmt.Errorf("sysquery: lookup user %q: %w", username, err)
	}
	uid, err := FileOwnerUID(path)
	if err != nil {
		return false, err
	}
	return strconv.FormatUint(uint64(uid), 10) == u.Uid, nil
}

// FileOwnedByGroup reports whether the file's group is the named group.
// Unknown group is a false result, not an error.
func FileOwnedByGroup(path, group string) (bool, error) {
	g, err := user.LookupGroup(group)
	if err != nil {
		var unknown user.UnknownGroupError
		if errors.As(err, &unknown) {
			return false, nil
		}
		return false, fmt.Errorf("sysquery: lookup group %q: %w", group, err)
	}
	gid, err := FileOwnerGID(path)
	if err != nil {
		return false, err
	}
	return strconv.FormatUint(uint64(gid), 10) == g.Gid, nil
}
