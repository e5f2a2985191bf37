// Package main is the entry point for the hearsay CLI.
//
// Usage:
//
//	hearsay [flags] <command> [subcommand] [args]
//
// Commands:
//
//	calibrate  - Register a speaker's voice from an audio sample
//	profiles   - List and delete calibrated speakers
//	session    - Run and manage transcription sessions
//	analysis   - Show the analysis of a session
//	version    - Show version information
package main

import (
	"os"

	"github.com/hearsaylabs/hearsay/cmd/hearsay/commands"
	"github.com/hearsaylabs/hearsay/pkg/cli"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		if apiErr, ok := recognizer.AsAPIError(err); ok && apiErr.IsRateLimit() {
			cli.PrintWarning("the provider is rate limiting requests, retry in a moment")
		}
		os.Exit(1)
	}
}
