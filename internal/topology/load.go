package topology

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// knownSections are the document sections the loader understands. Unknown
// top-level sections are ignored for forward compatibility; unknown fields
// inside a known section become warnings.
var knownSections = map[string]bool{
	"core":     true,
	"cas":      true,
	"msps":     true,
	"orderers": true,
	"peers":    true,
	"composer": true,
}

// Load reads, parses, and validates a topology document.
//
// All validation violations are collected in a single pass and returned
// together as a *ValidationError, so operators fix the document in one
// iteration. Non-fatal findings (unknown fields in known sections) are
// recorded on Topology.Warnings.
func Load(path string) (*Topology, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a topology document from raw YAML bytes.
func Parse(data []byte) (*Topology, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	// Drop unknown top-level sections before decoding so they never show
	// up as unused-field warnings.
	for key := range raw {
		if !knownSections[key] {
			delete(raw, key)
		}
	}

	var doc struct {
		Core     Core                     `mapstructure:"core"`
		CAs      map[string]*CA           `mapstructure:"cas"`
		MSPs     map[string]*MSP          `mapstructure:"msps"`
		Orderers map[string]*OrdererGroup `mapstructure:"orderers"`
		Peers    map[string]*PeerGroup    `mapstructure:"peers"`
		Composer *Composer                `mapstructure:"composer"`
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: &md,
		Result:   &doc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode topology: %w", err)
	}

	t := &Topology{
		Core:     doc.Core,
		CAs:      doc.CAs,
		MSPs:     doc.MSPs,
		Orderers: doc.Orderers,
		Peers:    doc.Peers,
		Composer: doc.Composer,
		Warnings: unusedFieldWarnings(md.Unused),
	}

	applyDefaults(t)
	recordDeclarationOrder(t, data)

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// applyDefaults fills entity names from their map keys and defaults
// namespaces, mirroring how release names are derived later.
func applyDefaults(t *Topology) {
	for name, ca := range t.CAs {
		ca.Name = name
		if ca.Namespace == "" {
			ca.Namespace = "default"
		}
	}
	for name, msp := range t.MSPs {
		msp.Name = name
		if msp.Namespace == "" {
			msp.Namespace = "default"
		}
	}
	for name, og := range t.Orderers {
		og.Name = name
		if og.Namespace == "" {
			og.Namespace = "default"
		}
	}
	for name, pg := range t.Peers {
		pg.Name = name
		if pg.Namespace == "" {
			pg.Namespace = "default"
		}
	}
}

// recordDeclarationOrder walks the yaml document tree to capture the key
// order of each map section. Go maps do not preserve order, and the
// orchestrator promises deterministic ordering between entities that have
// no dependency relation.
func recordDeclarationOrder(t *Topology, data []byte) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || len(root.Content) == 0 {
		// Already unmarshalled once; fall back to sorted order if the
		// node walk fails for any reason.
		t.caOrder = sortedKeys(t.CAs)
		t.mspOrder = sortedKeys(t.MSPs)
		t.ordererOrder = sortedKeys(t.Orderers)
		t.peerOrder = sortedKeys(t.Peers)
		return
	}

	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		section := doc.Content[i].Value
		body := doc.Content[i+1]
		if body.Kind != yaml.MappingNode {
			continue
		}
		var keys []string
		for j := 0; j+1 < len(body.Content); j += 2 {
			keys = append(keys, body.Content[j].Value)
		}
		switch section {
		case "cas":
			t.caOrder = keys
		case "msps":
			t.mspOrder = keys
		case "orderers":
			t.ordererOrder = keys
		case "peers":
			t.peerOrder = keys
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// unusedFieldWarnings turns mapstructure's unused-key metadata into
// operator-facing warnings. Keys are reported in a stable order.
func unusedFieldWarnings(unused []string) []string {
	var warnings []string
	for _, key := range unused {
		if !strings.Contains(key, ".") {
			// A whole unknown section was already filtered out above;
			// anything left without a dot is a struct-level artifact.
			continue
		}
		warnings = append(warnings, fmt.Sprintf("unknown field %q ignored", key))
	}
	sort.Strings(warnings)
	return warnings
}
