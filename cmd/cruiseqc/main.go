// Package main provides the CLI for the CruiseQC bottle data engine.
package main

import (
	"os"

	"github.com/leapstack-labs/cruiseqc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
