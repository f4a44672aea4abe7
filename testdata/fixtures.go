package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ayusman/solfa/internal/hand"
)

//go:embed hands/*.json
var handsFS embed.FS

// LoadHand loads a recorded landmark set by name (without the .json suffix).
func LoadHand(name string) (hand.LandmarkSet, error) {
	data, err := handsFS.ReadFile(path.Join("hands", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load hand %s: %w", name, err)
	}

	var set hand.LandmarkSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode hand %s: %w", name, err)
	}

	return set, nil
}

// HandNames lists every recorded landmark set
func HandNames() ([]string, error) {
	entries, err := handsFS.ReadDir("hands")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}

	return names, nil
}
