package handlers

import (
	"fmt"

	"github.com/fabkube/fabkube/internal/topology"
)

// Validate checks the topology document without touching the cluster.
// It prints the derived scheduling layers so operators can see what a
// deploy would do.
func Validate(configPath string) error {
	topo, err := loadTopology(configPath)
	if err != nil {
		return &ExitError{Code: ExitValidation, Err: err}
	}

	for _, w := range topo.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	graph, err := topology.BuildGraph(topo)
	if err != nil {
		return &ExitError{Code: ExitValidation, Err: err}
	}
	layers, err := graph.Layers()
	if err != nil {
		return &ExitError{Code: ExitValidation, Err: err}
	}

	fmt.Printf("topology valid: %d entities across %d layers\n", len(graph.Order), len(layers))
	for i, layer := range layers {
		fmt.Printf("  layer %d:", i)
		for _, id := range layer {
			fmt.Printf(" %s", id)
		}
		fmt.Println()
	}
	return nil
}
