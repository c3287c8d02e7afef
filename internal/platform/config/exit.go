package config

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// osExit is replaced in tests.
var osExit = os.Exit

// Exitf writes a formatted error message to stderr and exits with code 1.
// It provides a consistent fatal-exit pattern for CLI entry points.
func Exitf(format string, args ...any) {
	exitTo(os.Stderr, 1, format, args...)
}

// ExitWithCode is Exitf with an explicit process exit code. The maintenance
// tool uses code 2 to report integrity failures distinctly from usage errors.
func ExitWithCode(code int, format string, args ...any) {
	if code <= 0 {
		code = 1
	}
	exitTo(os.Stderr, code, format, args...)
}

func exitTo(w io.Writer, code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = io.WriteString(w, msg)
	osExit(code)
}
