package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabkube/fabkube/internal/topology/wizard"
)

// saveAndRestoreInitFactories saves and restores the init factory functions.
func saveAndRestoreInitFactories(t *testing.T) {
	origFileExists := fileExists
	origIsTerminal := isTerminal
	origRunWizard := runWizard
	origWriteTopology := writeTopology

	t.Cleanup(func() {
		fileExists = origFileExists
		isTerminal = origIsTerminal
		runWizard = origRunWizard
		writeTopology = origWriteTopology
	})
}

func TestInit_RequiresTerminal(t *testing.T) {
	saveAndRestoreInitFactories(t)
	isTerminal = func() bool { return false }

	err := Init(context.Background(), "fabkube.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive")
}

func TestInit_WritesWizardResult(t *testing.T) {
	saveAndRestoreInitFactories(t)
	isTerminal = func() bool { return true }
	fileExists = func(string) bool { return false }
	runWizard = func(context.Context) (*wizard.Result, error) {
		return &wizard.Result{
			ClusterName: "my-network",
			ChartRepo:   "https://charts.example.com",
			Namespace:   "fabric",
			CAName:      "ca",
			OrgName:     "Org1MSP",
			OrgAdmin:    "org1-admin",
			PeerCount:   2,
		}, nil
	}

	var writtenPath string
	writeTopology = func(_ *wizard.Result, path string) error {
		writtenPath = path
		return nil
	}

	outputPath := filepath.Join(t.TempDir(), "fabkube.yaml")
	err := Init(context.Background(), outputPath)
	require.NoError(t, err)
	assert.Equal(t, outputPath, writtenPath)
}

func TestInit_WizardCanceled(t *testing.T) {
	saveAndRestoreInitFactories(t)
	isTerminal = func() bool { return true }
	fileExists = func(string) bool { return false }
	runWizard = func(context.Context) (*wizard.Result, error) {
		return nil, errors.New("wizard canceled: user aborted")
	}

	err := Init(context.Background(), "fabkube.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}
