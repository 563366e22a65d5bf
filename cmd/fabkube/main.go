// Package main is the entry point for the fabkube CLI.
//
// fabkube is a command-line tool for provisioning Hyperledger Fabric
// networks on Kubernetes from a declarative topology document. It
// reconciles certificate authorities, organization identities, ordering
// services, channels, and peers in dependency order until the declared
// network converges.
//
// Commands: init, validate, deploy, version, completion.
//
// For detailed usage information, run:
//
//	fabkube --help
package main

import (
	"fmt"
	"os"

	"github.com/fabkube/fabkube/cmd/fabkube/commands"
	"github.com/fabkube/fabkube/cmd/fabkube/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(handlers.ExitCode(err))
	}
}
