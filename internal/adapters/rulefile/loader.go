// Package rulefile reads rule definitions from disk.
package rulefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/ruleapi/rule"
)

// Load reads a definition from path. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
func Load(path string) (rule.Definition, rule.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rule.Definition{}, rule.Rule{}, fmt.Errorf("read rule file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data according to ext and builds the rule.
func Parse(data []byte, ext string) (rule.Definition, rule.Rule, error) {
	var def rule.Definition
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return rule.Definition{}, rule.Rule{}, fmt.Errorf("decode yaml rule file: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return rule.Definition{}, rule.Rule{}, fmt.Errorf("decode json rule file: %w", err)
		}
	}

	r, err := def.Build()
	if err != nil {
		return rule.Definition{}, rule.Rule{}, err
	}
	return def, r, nil
}

// ToJSON converts a definition into the canonical JSON stored by the service.
func ToJSON(def rule.Definition) (json.RawMessage, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encode definition: %w", err)
	}
	return raw, nil
}
