// NimbusDrive command-line client.
package main

import (
	"os"

	"github.com/nimbusdrive/nimbus-cli/internal/cli"
	"github.com/nimbusdrive/nimbus-cli/internal/version"
)

// Version information - overridden at release time via LDFLAGS.
var (
	Version   = "v1.0.0"
	BuildTime = "2026-09-01"
)

func main() {
	// Version package is the canonical source for all packages.
	version.Version = Version
	version.BuildTime = BuildTime
	cli.Version = Version
	cli.BuildTime = BuildTime
	os.Exit(cli.Execute())
}
