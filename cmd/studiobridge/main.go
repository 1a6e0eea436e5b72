// Package main is the entry point for the studiobridge binary.
package main

import (
	"os"

	"github.com/harun/studiobridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
