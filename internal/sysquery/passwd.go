package sysquery

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PasswdEntry is one parsed line of an /etc/passwd-format file.
type PasswdEntry struct {
	Username string
	// PasswordInShadow is true when the password field is "x",
	// meaning the hash lives in /etc/shadow.
	PasswordInShadow bool
	UID              int
	GID              int
	Gecos            string
	HomeDir          string
	Shell            string
}

// ParsePasswdEntry parses a single colon-separated passwd line.
func ParsePasswdEntry(line string) (PasswdEntry, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 7 {
		return PasswdEntry{}, fmt.Errorf("sysquery: malformed passwd line: %d fields", len(fields))
	}

	uid, err := strconv.Atoi(fields[2])
	if err != nil {
		return PasswdEntry{}, fmt.Errorf("sysquery: passwd uid: %w", err)
	}
	gid, err := strconv.Atoi(fields[3])
	if err != nil {
		return PasswdEntry{}, fmt.Errorf("sysquery: passwd gid: %w", err)
	}

	return PasswdEntry{
		Username:         fields[0],
		PasswordInShadow: fields[1] == "x",
		UID:              uid,
		GID:              gid,
		Gecos:            fields[4],
		HomeDir:          fields[5],
		Shell:            fields[6],
	}, nil
}

// FindPasswd scans an /etc/passwd-format reader for the entry with the
// given username. Returns (entry, true, nil) when found and
// (zero, false, nil) when the reader is exhausted without a match.
// Malformed lines other than the target are skipped.
func FindPasswd(r io.Reader, name string) (PasswdEntry, bool, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if user, _, ok := strings.Cut(line, ":"); !ok || user != name {
			continue
		}
		entry, err := ParsePasswdEntry(line)
		if err != nil {
			return PasswdEntry{}, false, err
		}
		return entry, true, nil
	}
	if err := scanner.Err(); err != nil {
		return PasswdEntry{}, false, fmt.Errorf("sysquery: scan passwd: %w", err)
	}
	return PasswdEntry{}, false, nil
}

// ParsePasswdAll parses every line of an /etc/passwd-format reader.
func ParsePasswdAll(r io.Reader) ([]PasswdEntry, error) {
	var entries []PasswdEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := ParsePasswdEntry(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sysquery: scan passwd: %w", err)
	}
	return entries, nil
}
