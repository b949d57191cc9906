// Package appinfo provides application identity constants.
// These are used across packages for consistent naming.
package appinfo

const (
	// AppName is the display name of the application.
	AppName = "PenaltyPot"

	// DirName is the directory name used for storing application data.
	// Location: %LOCALAPPDATA%/penaltypot/ (Windows) or ~/.config/penaltypot/ (other)
	DirName = "penaltypot"

	// MutexName is the Windows mutex name for single instance control.
	// "Local\" prefix means the mutex is scoped to the current user session,
	// not system-wide. Keeping the process unique also keeps the session log
	// writer unique, which the ledger's replay ordering depends on.
	MutexName = "Local\\penaltypot"

	// LockFileName is the lock file name for single instance control.
	LockFileName = "penaltypot.lock"

	// ConfigFileName is the configuration file name.
	ConfigFileName = "config.json"

	// SecretsFileName is the secrets file name.
	SecretsFileName = "secrets.json"

	// DatabaseFileName is the SQLite database file name.
	DatabaseFileName = "penaltypot.sqlite"
)
