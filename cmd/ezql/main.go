// Package main provides the ezql command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/ezql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
