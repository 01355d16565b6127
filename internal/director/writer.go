package director

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// WritePlan writes a plan as TOML for .toml paths and YAML otherwise.
func WritePlan(plan *Plan, path string) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(plan); err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		data = buf.Bytes()
	} else {
		out, err := yaml.Marshal(plan)
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		data = out
	}

	return os.WriteFile(path, data, 0644)
}

// ReadPlan reads and validates a YAML or TOML plan. Relative shot inputs are resolved
// against the plan's directory.
func ReadPlan(path string) (*Plan, error) {
	var plan Plan
	if isTOML(path) {
		if _, err := toml.DecodeFile(path, &plan); err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", path, err)
		}
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i := range plan.Shots {
		in := plan.Shots[i].Input
		if !filepath.IsAbs(in) && !strings.Contains(in, ":") {
			plan.Shots[i].Input = filepath.Join(base, in)
		}
	}
	return &plan, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
