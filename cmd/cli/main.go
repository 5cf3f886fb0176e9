// Package main is the entry point for the jobtrack CLI.
// The CLI is the terminal tool for interacting with the jobtrack API.
package main

import (
	"os"

	"jobtrack/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
