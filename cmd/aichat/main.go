// Package main provides the entry point for the aichat CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spiritledsoftware/ai/cmd/aichat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
