// Package main is the entrypoint for the opsintel CLI.
// The CLI provides commands for querying sources, freshness reporting,
// template execution, and running the collection scheduler.
package main

import (
	"os"

	"github.com/opsintel-labs/opsintel/internal/cli"
)

func main() {
	os.Exit(cli.New().Execute())
}
