// Package topology defines the declarative Fabric network topology model.
//
// A topology document describes the desired network in five sections
// (core, cas, msps, orderers, peers) plus an optional composer extension.
// Load parses and validates the document into an immutable Topology value;
// BuildGraph derives the entity dependency graph that drives orchestration.
package topology

import "fmt"

// Kind identifies the reconcilable entity kinds of a topology.
type Kind string

const (
	KindCA      Kind = "ca"
	KindMSP     Kind = "msp"
	KindOrderer Kind = "orderer"
	KindPeer    Kind = "peer"
	KindChannel Kind = "channel"
)

// EntityID uniquely identifies one orchestration entity.
type EntityID struct {
	Kind Kind
	Name string
}

func (e EntityID) String() string {
	return fmt.Sprintf("%s/%s", e.Kind, e.Name)
}

// Core holds cluster-wide settings and the local artifact directories.
type Core struct {
	ClusterName string `mapstructure:"cluster_name" yaml:"cluster_name"`
	ChartRepo   string `mapstructure:"chart_repo" yaml:"chart_repo"`
	DirCrypto   string `mapstructure:"dir_crypto" yaml:"dir_crypto"`
	DirGenesis  string `mapstructure:"dir_genesis" yaml:"dir_genesis"`
	DirChannel  string `mapstructure:"dir_channel" yaml:"dir_channel"`
	DirValues   string `mapstructure:"dir_values" yaml:"dir_values"`
}

// CA describes one Fabric certificate authority deployment.
type CA struct {
	Name      string `mapstructure:"-" yaml:"-"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	TLSCert   string `mapstructure:"tls_cert" yaml:"tls_cert"`
}

// MSP associates an organization with a CA and an admin identity.
type MSP struct {
	Name      string `mapstructure:"-" yaml:"-"`
	CA        string `mapstructure:"ca" yaml:"ca"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	OrgAdmin  string `mapstructure:"org_admin" yaml:"org_admin"`
}

// OrdererGroup describes a group of ordering nodes sharing an MSP.
type OrdererGroup struct {
	Name          string   `mapstructure:"-" yaml:"-"`
	MSP           string   `mapstructure:"msp" yaml:"msp"`
	Namespace     string   `mapstructure:"namespace" yaml:"namespace"`
	Domain        string   `mapstructure:"domain" yaml:"domain"`
	Names         []string `mapstructure:"names" yaml:"names"`
	SecretGenesis string   `mapstructure:"secret_genesis" yaml:"secret_genesis"`
}

// PeerGroup describes a group of peer nodes sharing an MSP and a channel.
type PeerGroup struct {
	Name           string   `mapstructure:"-" yaml:"-"`
	MSP            string   `mapstructure:"msp" yaml:"msp"`
	Namespace      string   `mapstructure:"namespace" yaml:"namespace"`
	Domain         string   `mapstructure:"domain" yaml:"domain"`
	Names          []string `mapstructure:"names" yaml:"names"`
	ChannelName    string   `mapstructure:"channel_name" yaml:"channel_name"`
	ChannelProfile string   `mapstructure:"channel_profile" yaml:"channel_profile"`
	SecretChannel  string   `mapstructure:"secret_channel" yaml:"secret_channel"`
}

// Composer is the optional network-composition extension. It is validated
// for reference integrity but never reconciled; see the deploy report.
type Composer struct {
	SecretBNA        string `mapstructure:"secret_bna" yaml:"secret_bna"`
	SecretConnection string `mapstructure:"secret_connection" yaml:"secret_connection"`
}

// Topology is the root configuration entity. It is immutable after Load;
// every component receives it by reference and never mutates it.
type Topology struct {
	Core     Core
	CAs      map[string]*CA
	MSPs     map[string]*MSP
	Orderers map[string]*OrdererGroup
	Peers    map[string]*PeerGroup
	Composer *Composer

	// Warnings collects non-fatal findings from Load (unknown fields).
	Warnings []string

	// Declaration order of map sections, recorded from the YAML document
	// so orchestration order is deterministic.
	caOrder      []string
	mspOrder     []string
	ordererOrder []string
	peerOrder    []string
}

// CANames returns CA names in declaration order.
func (t *Topology) CANames() []string { return t.caOrder }

// MSPNames returns MSP names in declaration order.
func (t *Topology) MSPNames() []string { return t.mspOrder }

// OrdererNames returns orderer group names in declaration order.
func (t *Topology) OrdererNames() []string { return t.ordererOrder }

// PeerNames returns peer group names in declaration order.
func (t *Topology) PeerNames() []string { return t.peerOrder }

// ChannelNames returns distinct channel names in the declaration order of
// the first peer group that references each channel.
func (t *Topology) ChannelNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, pg := range t.peerOrder {
		ch := t.Peers[pg].ChannelName
		if ch == "" || seen[ch] {
			continue
		}
		seen[ch] = true
		names = append(names, ch)
	}
	return names
}

// PeerGroupsForChannel returns the peer groups referencing the given
// channel, in declaration order.
func (t *Topology) PeerGroupsForChannel(channel string) []*PeerGroup {
	var groups []*PeerGroup
	for _, name := range t.peerOrder {
		if t.Peers[name].ChannelName == channel {
			groups = append(groups, t.Peers[name])
		}
	}
	return groups
}
