package codes

import (
	"errors"
	"io/fs"

	"github.com/Norgate-AV/cdbpatch/internal/cdb"
	"github.com/Norgate-AV/cdbpatch/internal/cmdline"
	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

// Exit codes returned by cdbpatch
const (
	Success = 0
	General = 1
	Usage   = 2
	Parse   = 3
	Probe   = 4
	IO      = 5
)

// ErrorCodes maps cdbpatch exit codes to their descriptions
var ErrorCodes = map[int]string{
	Success: "Success",
	General: "General failure",
	Usage:   "Invalid usage or configuration",
	Parse:   "Cannot split a compile command",
	Probe:   "Toolchain probe failed",
	IO:      "Cannot read or write the compilation database",
}

// IsSuccess returns true if the exit code indicates a successful run
func IsSuccess(code int) bool {
	return code == Success
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}

// UsageError marks invalid arguments or configuration
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ForError returns the exit code for an error returned by a command
func ForError(err error) int {
	if err == nil {
		return Success
	}

	var (
		usageErr *UsageError
		parseErr *cmdline.ParseError
		probeErr *compiler.ProbeError
		dbErr    *cdb.Error
		pathErr  *fs.PathError
	)

	switch {
	case errors.As(err, &usageErr):
		return Usage
	case errors.As(err, &parseErr), errors.Is(err, cmdline.ErrEmptyCommand):
		return Parse
	case errors.As(err, &probeErr):
		return Probe
	case errors.As(err, &dbErr), errors.As(err, &pathErr):
		return IO
	default:
		return General
	}
}
