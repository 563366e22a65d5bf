// Package wizard implements the interactive topology scaffold behind
// `fabkube init`. It asks a handful of questions and renders a complete
// topology document with explicit defaults, so the generated YAML needs
// no further editing before a first deploy.
package wizard

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
)

// nameRe matches DNS-safe lowercase names, the same shape Kubernetes
// accepts for namespaces and release names.
var nameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Result holds the user's choices.
type Result struct {
	ClusterName string
	ChartRepo   string
	Namespace   string
	CAName      string
	OrgName     string
	OrgAdmin    string
	PeerCount   int
	ChannelName string
	WithOrderer bool
}

// Run executes the interactive form. The caller gates on TTY presence;
// running the form without one returns an error from huh.
func Run(ctx context.Context) (*Result, error) {
	result := &Result{
		ChartRepo: "https://kubernetes-charts.storage.googleapis.com",
		Namespace: "fabric",
		CAName:    "ca",
		PeerCount: 2,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Network name").
				Description("A unique name for the Fabric network (DNS-safe, lowercase)").
				Placeholder("my-network").
				Value(&result.ClusterName).
				Validate(validateName),
			huh.NewInput().
				Title("Chart repository").
				Description("Helm repository hosting the hlf-ca, hlf-ord, and hlf-peer charts").
				Value(&result.ChartRepo),
			huh.NewInput().
				Title("Namespace").
				Description("Kubernetes namespace for all network components").
				Value(&result.Namespace).
				Validate(validateName),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Certificate authority name").
				Value(&result.CAName).
				Validate(validateName),
			huh.NewInput().
				Title("Organization name").
				Description("Used as the MSP identifier (e.g. Org1MSP)").
				Placeholder("Org1MSP").
				Value(&result.OrgName).
				Validate(validateRequired),
			huh.NewInput().
				Title("Organization admin identity").
				Placeholder("org1-admin").
				Value(&result.OrgAdmin).
				Validate(validateName),
		),

		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Number of peers").
				Options(
					huh.NewOption("1 peer", 1),
					huh.NewOption("2 peers", 2),
					huh.NewOption("3 peers", 3),
					huh.NewOption("4 peers", 4),
					huh.NewOption("5 peers", 5),
				).
				Value(&result.PeerCount),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Deploy an ordering service and channel?").
				Description("Without it fabkube deploys CA, MSP, and peers only").
				Value(&result.WithOrderer),
			huh.NewInput().
				Title("Channel name").
				Description("Ignored when no ordering service is deployed").
				Placeholder("mychannel").
				Value(&result.ChannelName).
				Validate(validateOptionalName),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	if result.WithOrderer && result.ChannelName == "" {
		result.ChannelName = "mychannel"
	}
	return result, nil
}

func validateName(s string) error {
	if s == "" {
		return fmt.Errorf("value is required")
	}
	if !nameRe.MatchString(s) {
		return fmt.Errorf("must be lowercase alphanumeric with dashes")
	}
	return nil
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

func validateOptionalName(s string) error {
	if s == "" {
		return nil
	}
	return validateName(s)
}
