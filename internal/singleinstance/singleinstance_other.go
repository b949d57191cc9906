//go:build !windows

// Package singleinstance ensures only one process writes the ledger.
package singleinstance

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mhessel/penaltypot/internal/config"
)

// AcquireLock takes an advisory flock on a lock file in the data
// directory. The log is append-only with a single writer; a second
// process would break that guarantee.
//
// Returns:
//   - release: function to call when shutting down (use with defer)
//   - ok: true if the lock was acquired, false if another instance runs
//   - err: error if something went wrong
func AcquireLock() (release func(), ok bool, err error) {
	if _, err := config.EnsureDataDir(); err != nil {
		return nil, false, err
	}
	path, err := config.LockFilePath()
	if err != nil {
		return nil, false, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock: %w", err)
	}

	// Pid in the file is informational only; the flock is the lock.
	f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, true, nil
}
