package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/fabkube/fabkube/internal/topology/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// isTerminal reports whether stdout is attached to a terminal.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	// runWizard runs the interactive topology wizard.
	runWizard = wizard.Run

	// writeTopology writes the wizard result to a file.
	writeTopology = func(r *wizard.Result, path string) error {
		return r.WriteFile(path)
	}
)

// Init runs the topology wizard and writes the result to a file.
func Init(ctx context.Context, outputPath string) error {
	if !isTerminal() {
		return fmt.Errorf("init is interactive and requires a terminal; write %s by hand instead", outputPath)
	}

	if fileExists(outputPath) {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return err
	}

	if err := writeTopology(result, outputPath); err != nil {
		return fmt.Errorf("failed to write topology: %w", err)
	}

	printInitSuccess(outputPath, result)
	return nil
}

func printWelcome() {
	fmt.Println()
	fmt.Println("fabkube - Hyperledger Fabric on Kubernetes")
	fmt.Println("==========================================")
	fmt.Println()
	fmt.Println("This wizard scaffolds a topology document with explicit defaults.")
	fmt.Println("Review the generated YAML and place your crypto material in the")
	fmt.Println("artifact directories before deploying.")
	fmt.Println()
}

func printInitSuccess(outputPath string, result *wizard.Result) {
	fmt.Println()
	fmt.Println("Topology saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	fmt.Println("Network Summary")
	fmt.Println("---------------")
	fmt.Printf("  Name:         %s\n", result.ClusterName)
	fmt.Printf("  Namespace:    %s\n", result.Namespace)
	fmt.Printf("  CA:           %s\n", result.CAName)
	fmt.Printf("  Organization: %s (admin %s)\n", result.OrgName, result.OrgAdmin)
	fmt.Printf("  Peers:        %d\n", result.PeerCount)
	if result.WithOrderer {
		fmt.Printf("  Channel:      %s\n", result.ChannelName)
	} else {
		fmt.Println("  Channel:      none (peers only)")
	}
	fmt.Println()

	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Println("  1. Place crypto material, genesis block, and channel")
	fmt.Println("     transactions in the configured artifact directories")
	fmt.Println()
	fmt.Printf("  2. Check the document:\n")
	fmt.Printf("     fabkube validate -c %s\n", outputPath)
	fmt.Println()
	fmt.Println("  3. Deploy the network:")
	fmt.Printf("     fabkube deploy -c %s\n", outputPath)
	fmt.Println()
}
