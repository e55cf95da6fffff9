package config

import (
	"fmt"
	"os"
)

// Exitf prints the formatted message to stderr and terminates the
// process with status 1. Entry points use it for unrecoverable
// startup errors.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
