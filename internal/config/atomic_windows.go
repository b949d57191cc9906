//go:build windows

package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// writeJSONAtomic writes data to path atomically using the
// tmp->MoveFileEx pattern. os.Rename fails on Windows when the
// destination exists, so MoveFileEx with MOVEFILE_REPLACE_EXISTING is
// used instead.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Temp file must be in the same directory for the rename to be atomic.
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpName)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	src, err := windows.UTF16PtrFromString(tmpName)
	if err != nil {
		return err
	}
	dst, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}

	if err := windows.MoveFileEx(src, dst, windows.MOVEFILE_REPLACE_EXISTING); err != nil {
		return err
	}

	success = true
	return nil
}
