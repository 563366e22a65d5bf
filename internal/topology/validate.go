package topology

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError reports every violation found in a topology document.
// It is always returned before any cluster call is made.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid topology (%d violation(s)): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// Validate checks the topology for structural errors. Unlike typical
// fail-fast validation it collects all violations in one pass.
func (t *Topology) Validate() error {
	var v []string

	v = append(v, t.validateCore()...)
	v = append(v, t.validateCAs()...)
	v = append(v, t.validateMSPs()...)
	v = append(v, t.validateOrderers()...)
	v = append(v, t.validatePeers()...)

	// Reference cycles are a configuration error, not a runtime discovery.
	// Only check when the references themselves resolved, otherwise the
	// graph builder would report the dangling reference a second time.
	if len(v) == 0 {
		if _, err := BuildGraph(t); err != nil {
			v = append(v, err.Error())
		}
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

func (t *Topology) validateCore() []string {
	var v []string
	if t.Core.ClusterName == "" {
		v = append(v, "core.cluster_name is required")
	}
	if t.Core.ChartRepo == "" {
		v = append(v, "core.chart_repo is required")
	}
	dirs := []struct{ field, path string }{
		{"core.dir_crypto", t.Core.DirCrypto},
		{"core.dir_genesis", t.Core.DirGenesis},
		{"core.dir_channel", t.Core.DirChannel},
		{"core.dir_values", t.Core.DirValues},
	}
	for _, d := range dirs {
		if d.path == "" {
			v = append(v, fmt.Sprintf("%s is required", d.field))
			continue
		}
		info, err := os.Stat(d.path)
		switch {
		case err != nil:
			v = append(v, fmt.Sprintf("%s: directory %q is not readable", d.field, d.path))
		case !info.IsDir():
			v = append(v, fmt.Sprintf("%s: %q is not a directory", d.field, d.path))
		}
	}
	return v
}

func (t *Topology) validateCAs() []string {
	var v []string
	for _, name := range t.caOrder {
		ca := t.CAs[name]
		if ca.TLSCert == "" {
			v = append(v, fmt.Sprintf("cas.%s.tls_cert is required", name))
		}
	}
	return v
}

func (t *Topology) validateMSPs() []string {
	var v []string
	for _, name := range t.mspOrder {
		msp := t.MSPs[name]
		if msp.CA == "" {
			v = append(v, fmt.Sprintf("msps.%s.ca is required", name))
		} else if _, ok := t.CAs[msp.CA]; !ok {
			v = append(v, fmt.Sprintf("msps.%s.ca references unknown CA %q", name, msp.CA))
		}
		if msp.OrgAdmin == "" {
			v = append(v, fmt.Sprintf("msps.%s.org_admin is required", name))
		}
	}
	return v
}

func (t *Topology) validateOrderers() []string {
	var v []string
	for _, name := range t.ordererOrder {
		og := t.Orderers[name]
		v = append(v, validateGroupRefs("orderers", name, og.MSP, og.Names, t)...)
		if og.SecretGenesis == "" {
			v = append(v, fmt.Sprintf("orderers.%s.secret_genesis is required", name))
		}
	}
	return v
}

func (t *Topology) validatePeers() []string {
	var v []string
	// Groups sharing a channel must agree on the artifact secret; the
	// channel step writes exactly one secret per channel.
	channelSecret := make(map[string]string)
	channelOwner := make(map[string]string)
	for _, name := range t.peerOrder {
		pg := t.Peers[name]
		v = append(v, validateGroupRefs("peers", name, pg.MSP, pg.Names, t)...)
		if pg.ChannelName == "" {
			continue
		}
		if pg.SecretChannel == "" {
			v = append(v, fmt.Sprintf("peers.%s.secret_channel is required", name))
		}
		if len(t.Orderers) == 0 {
			v = append(v, fmt.Sprintf("peers.%s.channel_name %q requires at least one orderer group", name, pg.ChannelName))
		}
		if pg.SecretChannel == "" {
			continue
		}
		if prev, ok := channelSecret[pg.ChannelName]; !ok {
			channelSecret[pg.ChannelName] = pg.SecretChannel
			channelOwner[pg.ChannelName] = name
		} else if prev != pg.SecretChannel {
			v = append(v, fmt.Sprintf("peers.%s.secret_channel %q conflicts with peers.%s.secret_channel %q for channel %q",
				name, pg.SecretChannel, channelOwner[pg.ChannelName], prev, pg.ChannelName))
		}
	}
	return v
}

func validateGroupRefs(section, name, msp string, names []string, t *Topology) []string {
	var v []string
	if msp == "" {
		v = append(v, fmt.Sprintf("%s.%s.msp is required", section, name))
	} else if _, ok := t.MSPs[msp]; !ok {
		v = append(v, fmt.Sprintf("%s.%s.msp references unknown MSP %q", section, name, msp))
	}
	if len(names) == 0 {
		v = append(v, fmt.Sprintf("%s.%s.names must not be empty", section, name))
	}
	return v
}
