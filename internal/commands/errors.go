package commands

import (
	"errors"
	"log/slog"

	"github.com/dotcommander/simuwork/internal/app"
	"github.com/dotcommander/simuwork/internal/output"
)

// Process exit statuses.
const (
	ExitFailure = 1
	ExitConfig  = 2
)

// printedError marks an error whose JSON response has already been written.
type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the JSON error response is the output.
	return "error already printed"
}

func (e printedError) Unwrap() error { return e.err }

// cmdErr logs err with any structured detail it carries, prints the JSON
// error envelope and returns a printedError so Execute does not log it twice.
func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	_ = output.PrintError(err)
	return printedError{err: err}
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *app.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	return ExitFailure
}
