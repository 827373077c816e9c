// Package main provides the entry point for the trackindex CLI.
package main

import (
	"os"

	"github.com/auralite/trackindex/cmd/trackindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
