//go:build windows

// Package singleinstance ensures only one process writes the ledger.
package singleinstance

import (
	"github.com/mhessel/penaltypot/internal/appinfo"
	"golang.org/x/sys/windows"
)

// AcquireLock attempts to acquire a session-scoped named mutex so only
// one instance runs per user session. The log is append-only with a
// single writer; a second process would break that guarantee.
//
// Returns:
//   - release: function to call when shutting down (use with defer)
//   - ok: true if the lock was acquired, false if another instance runs
//   - err: error if something went wrong
func AcquireLock() (release func(), ok bool, err error) {
	name, err := windows.UTF16PtrFromString(appinfo.MutexName)
	if err != nil {
		return nil, false, err
	}

	h, err := windows.CreateMutex(nil, false, name)
	if err != nil {
		if err == windows.ERROR_ALREADY_EXISTS {
			if h != 0 {
				windows.CloseHandle(h)
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	return func() {
		windows.CloseHandle(h)
	}, true, nil
}
