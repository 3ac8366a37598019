package computed

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrUnknownDefinition is returned when a name has no computed-parameter definition.
var ErrUnknownDefinition = errors.New("unknown computed parameter")

// Definition declares a computed parameter. Equations may reference other
// definitions as ${NAME}.
type Definition struct {
	Name      string `yaml:"param_name" json:"param_name"`
	Equation  string `yaml:"equation" json:"equation"`
	Precision *int   `yaml:"precision,omitempty" json:"precision,omitempty"`
	Units     string `yaml:"units,omitempty" json:"units,omitempty"`
}

type definitionsDoc struct {
	Params []Definition `yaml:"computed_params"`
}

// LoadDefinitions reads a definitions document. A missing file yields no definitions.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read computed parameter definitions: %w", err)
	}
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseDefinitions decodes either a bare list of definitions or a document with
// a computed_params list. JSON input is accepted as YAML.
func ParseDefinitions(data []byte) ([]Definition, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var defs []Definition
	if data[0] == '[' || data[0] == '-' {
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("invalid definitions: %w", err)
		}
	} else {
		var doc definitionsDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid definitions: %w", err)
		}
		defs = doc.Params
	}

	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		switch {
		case d.Name == "":
			return nil, fmt.Errorf("definition %d: param_name is required", i)
		case d.Equation == "":
			return nil, fmt.Errorf("definition %s: equation is required", d.Name)
		case seen[d.Name]:
			return nil, fmt.Errorf("definition %s is declared more than once", d.Name)
		}
		seen[d.Name] = true
	}
	return defs, nil
}

// MarshalDefinitions encodes defs as a computed_params document.
func MarshalDefinitions(defs []Definition) ([]byte, error) {
	return yaml.Marshal(definitionsDoc{Params: defs})
}
