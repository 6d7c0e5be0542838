package constants

import "time"

const (
	AppName           = "keel"
	DefaultConfigDir  = "~/.config/keel"
	Version           = "v0.1.0"
	EnvPrefix         = "KEEL"
	ConfigFileName    = "config"
	DatabaseFileName  = "keel.db"
	FallbackFileName  = "keel.kv.json"
	WatcherLockName   = "keel-watch.lock"
	ManagedFolderName = "keel"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// TimestampFormat is the fixed-width UTC layout stored for instants, so
	// stored values sort lexically.
	TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "keel-"
	BackupFileSuffix = ".db"

	// Sync constants
	DefaultSyncDebounce = 2 * time.Second
	SyncProviderNone    = "none"
	SyncProviderManaged = "managed"
	SyncProviderFolder  = "folder"

	// Session kinds
	SessionKindFasting = "fasting"

	// Period numbering is fixed policy: 52 weeks, Monday start.
	MaxPeriod       = 52
	PeriodWeekStart = time.Monday
)
