// Package main is the entry point for the Fabriq platform daemon.
package main

import (
	"fmt"
	"os"

	// Builtin capability plugins register themselves on import.
	_ "github.com/fabriq/fabriq/plugins/memcatalog"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
