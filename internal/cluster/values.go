package cluster

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// Values represents Helm chart values as a map.
type Values map[string]interface{}

// MergeValues combines value maps with later maps taking precedence.
// Nested maps are merged recursively so a per-release override file can
// adjust a single key without clobbering computed siblings.
func MergeValues(valueMaps ...Values) Values {
	result := make(Values)
	for _, m := range valueMaps {
		mergeInto(result, m)
	}
	return result
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				mergeInto(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

// LoadValuesFile reads a per-release values override from the values
// directory. A missing file is not an error: most releases use computed
// values only.
func LoadValuesFile(dir, releaseName string) (Values, error) {
	path := filepath.Join(dir, releaseName+".yaml")
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return nil, fmt.Errorf("failed to read values file %s: %w", path, err)
	}

	var values Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse values file %s: %w", path, err)
	}
	if values == nil {
		values = Values{}
	}
	return values, nil
}
