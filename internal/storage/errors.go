package storage

import "errors"

// MigrationError marks a schema migration failure. Unlike other open
// failures it is fatal and never triggers the fallback backend.
type MigrationError struct {
	Err error
}

func (e *MigrationError) Error() string {
	return "schema migration failed: " + e.Err.Error()
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// IsMigrationError reports whether err wraps a MigrationError.
func IsMigrationError(err error) bool {
	var me *MigrationError
	return errors.As(err, &me)
}
