// Package main is the entry point for the wadash CLI.
package main

import (
	"os"

	"github.com/wadash/wadash/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
