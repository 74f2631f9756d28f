// Package main is the entry point for the Airweave CLI: the operational
// surface of the sync platform. It delegates to the cli package, which owns
// command definitions, configuration management, and component wiring.
package main

import (
	"github.com/sanchitsharma77/airweave-sub002/cli"
)

func main() {
	cli.Execute()
}
