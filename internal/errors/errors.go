package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/keel/internal/logger"
	"github.com/julianstephens/keel/internal/models"
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// ExitCode maps an error to a process exit code. Caller-visible domain
// failures exit with 2 so scripts can tell them apart from system errors.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrOpenSessionExists),
		errors.Is(err, models.ErrNoOpenSession),
		errors.Is(err, models.ErrInvalidTimeRange),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrFutureDate),
		errors.Is(err, models.ErrInvalidSlot),
		errors.Is(err, models.ErrInvalidPeriod):
		return 2
	default:
		return 1
	}
}

// Fatal logs an error and exits the program with a non-zero exit code
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(ExitCode(err))
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
