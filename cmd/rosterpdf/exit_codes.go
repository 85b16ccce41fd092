package main

import (
	"errors"
	"os"

	"github.com/wudi/rosterpdf/export"
	"github.com/wudi/rosterpdf/internal/yamlutil"
	"github.com/wudi/rosterpdf/roster"
)

// Exit codes follow Unix conventions: 0 success, 1 general, 2 usage.
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitUsage   = 2
	ExitIO      = 3 // unreadable input or unwritable destination
)

// errReadInput wraps failures to read a roster file.
var errReadInput = errors.New("read input")

func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, errReadInput) ||
		errors.Is(err, export.ErrWrite) {
		return ExitIO
	}

	if errors.Is(err, errUsage) ||
		errors.Is(err, roster.ErrParse) ||
		errors.Is(err, yamlutil.ErrTooLarge) {
		return ExitUsage
	}

	return ExitGeneral
}
