// Package main is the entry point for the ticketrelay service.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/ticketrelay/cmd"
	"github.com/danielolaszy/ticketrelay/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logging.Debug("starting ticketrelay", "version", version)

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
