package wizard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// document mirrors the topology schema with ordered YAML rendering.
type document struct {
	Core     coreSection             `yaml:"core"`
	CAs      map[string]caSection    `yaml:"cas"`
	MSPs     map[string]mspSection   `yaml:"msps"`
	Orderers map[string]groupSection `yaml:"orderers,omitempty"`
	Peers    map[string]peerSection  `yaml:"peers"`
}

type coreSection struct {
	ClusterName string `yaml:"cluster_name"`
	ChartRepo   string `yaml:"chart_repo"`
	DirCrypto   string `yaml:"dir_crypto"`
	DirGenesis  string `yaml:"dir_genesis"`
	DirChannel  string `yaml:"dir_channel"`
	DirValues   string `yaml:"dir_values"`
}

type caSection struct {
	Namespace string `yaml:"namespace"`
	TLSCert   string `yaml:"tls_cert"`
}

type mspSection struct {
	CA        string `yaml:"ca"`
	Namespace string `yaml:"namespace"`
	OrgAdmin  string `yaml:"org_admin"`
}

type groupSection struct {
	MSP           string   `yaml:"msp"`
	Namespace     string   `yaml:"namespace"`
	Names         []string `yaml:"names"`
	SecretGenesis string   `yaml:"secret_genesis"`
}

type peerSection struct {
	MSP           string   `yaml:"msp"`
	Namespace     string   `yaml:"namespace"`
	Names         []string `yaml:"names"`
	ChannelName   string   `yaml:"channel_name,omitempty"`
	SecretChannel string   `yaml:"secret_channel,omitempty"`
}

// Document renders the wizard result as a topology document.
func (r *Result) Document() ([]byte, error) {
	doc := document{
		Core: coreSection{
			ClusterName: r.ClusterName,
			ChartRepo:   r.ChartRepo,
			DirCrypto:   "./config/crypto",
			DirGenesis:  "./config/genesis",
			DirChannel:  "./config/channel",
			DirValues:   "./config/values",
		},
		CAs: map[string]caSection{
			r.CAName: {Namespace: r.Namespace, TLSCert: r.CAName + "-tls"},
		},
		MSPs: map[string]mspSection{
			r.OrgName: {CA: r.CAName, Namespace: r.Namespace, OrgAdmin: r.OrgAdmin},
		},
		Peers: map[string]peerSection{
			"peer": {
				MSP:       r.OrgName,
				Namespace: r.Namespace,
				Names:     nodeNames("peer", r.PeerCount),
			},
		},
	}

	if r.WithOrderer {
		doc.Orderers = map[string]groupSection{
			"orderer": {
				MSP:           r.OrgName,
				Namespace:     r.Namespace,
				Names:         nodeNames("ord", 1),
				SecretGenesis: "hlf--genesis",
			},
		}
		peers := doc.Peers["peer"]
		peers.ChannelName = r.ChannelName
		peers.SecretChannel = "hlf--channel"
		doc.Peers["peer"] = peers
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render topology: %w", err)
	}
	return out, nil
}

// WriteFile renders the document and writes it to path.
func (r *Result) WriteFile(path string) error {
	doc, err := r.Document()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		return fmt.Errorf("failed to write topology file: %w", err)
	}
	return nil
}

func nodeNames(prefix string, count int) []string {
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return names
}
