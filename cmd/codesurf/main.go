// Package main provides the entry point for the codesurf CLI.
package main

import (
	"fmt"
	"os"

	"github.com/codesurf-ai/codesurf/cmd/codesurf/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
