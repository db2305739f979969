package main

import (
	"errors"
	"os"

	"github.com/razvandimescu/bookpeek/internal/config"
)

// Exit codes follow Unix conventions: 0=success, 1=general, 2=usage.
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitUsage   = 2 // Invalid flags or config
	ExitIO      = 3 // Content root not found or unreadable
)

var (
	errUsage    = errors.New("invalid usage")
	errNoRoot   = errors.New("content root not found")
	errNotARoot = errors.New("not inside a content repository")
)

// exitCodeFor returns the exit code for err. Callers must wrap with %w.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, errNoRoot) ||
		errors.Is(err, errNotARoot) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) {
		return ExitIO
	}

	if errors.Is(err, errUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrConfigTooLarge) ||
		errors.Is(err, config.ErrInvalidPort) {
		return ExitUsage
	}

	return ExitGeneral
}
