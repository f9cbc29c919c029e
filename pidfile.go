package daemonize

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// PIDFile manages the on-disk pid record for a daemon. The record is
// informational: single-instance exclusion is enforced by the instance
// lock, not by this file.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile for the given path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the pid record path
func (p *PIDFile) Path() string {
	return p.path
}

// Write atomically truncates and rewrites the record with the given
// process identifier.
func (p *PIDFile) Write(pid int) error {
	data := strconv.Itoa(pid) + "\n"
	if err := renameio.WriteFile(p.path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("writing pid record: %w", err)
	}
	return nil
}

// Read parses the recorded process identifier. Returns ErrInvalidPID
// if the record holds non-numeric or non-positive data.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}

	raw := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, raw)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}

	return pid, nil
}

// Remove deletes the record. Removing an absent record is not an
// error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid record: %w", err)
	}
	return nil
}

// Exists reports whether the record is present on disk
func (p *PIDFile) Exists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}
