package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/tempstation/internal/errors"
)

const (
	pidFile = "tempstation.pid"
)

// DefaultPath is the PID file location used by Write and Remove.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to the default PID file.
func Write() error {
	return WriteAt(DefaultPath())
}

// Remove removes the default PID file.
func Remove() error {
	return RemoveAt(DefaultPath())
}

// WriteAt writes the current process ID to path. It fails with
// ErrAlreadyRunning when path names a live process; a stale or unreadable
// file is replaced.
func WriteAt(path string) error {
	errFactory := errors.New()

	if running, pid := isRunning(path); running {
		return errFactory.WithData(errors.ErrAlreadyRunning, pid)
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// RemoveAt removes the PID file at path if it exists.
func RemoveAt(path string) error {
	errFactory := errors.New()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func isRunning(path string) (bool, int) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	return process.Signal(syscall.Signal(0)) == nil, pid
}
