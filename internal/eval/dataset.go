// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package eval

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-research/pkg/types"
)

//go:embed dataset.yaml
var builtinDataset []byte

// Dataset is the YAML layout of an evaluation dataset file.
type Dataset struct {
	Cases []types.EvaluationCase `yaml:"cases"`
}

// DefaultCases returns the built-in scoping cases.
func DefaultCases() ([]types.EvaluationCase, error) {
	return ParseDataset(builtinDataset)
}

// LoadDataset reads cases from a YAML file.
func LoadDataset(path string) ([]types.EvaluationCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return ParseDataset(data)
}

// ParseDataset decodes and validates dataset YAML. Case IDs must be unique
// and every case needs an input and at least one expected point.
func ParseDataset(data []byte) ([]types.EvaluationCase, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	if len(ds.Cases) == 0 {
		return nil, fmt.Errorf("dataset has no cases")
	}
	seen := make(map[string]bool, len(ds.Cases))
	for i, c := range ds.Cases {
		switch {
		case strings.TrimSpace(c.ID) == "":
			return nil, fmt.Errorf("case %d: missing id", i+1)
		case seen[c.ID]:
			return nil, fmt.Errorf("case %s: duplicate id", c.ID)
		case strings.TrimSpace(c.Input) == "":
			return nil, fmt.Errorf("case %s: missing input", c.ID)
		case len(c.ExpectedPoints) == 0:
			return nil, fmt.Errorf("case %s: no expected points", c.ID)
		}
		seen[c.ID] = true
	}
	return ds.Cases, nil
}
