package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run against a set of logic definitions.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Specs lists CUE files, relative to the scenario file.
	Specs []string `yaml:"specs"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`

	// Session fixes the journal session ID. Defaults to "test-session".
	Session string `yaml:"session,omitempty"`
}

// Step is one mount, unmount or dispatch. Exactly one of Mount, Unmount
// and Dispatch is set.
type Step struct {
	Mount    string `yaml:"mount,omitempty"`
	Unmount  string `yaml:"unmount,omitempty"`
	Dispatch string `yaml:"dispatch,omitempty"`

	// Logic names the definition a dispatch goes through.
	Logic string `yaml:"logic,omitempty"`

	Key   any            `yaml:"key,omitempty"`
	Props map[string]any `yaml:"props,omitempty"`
	Args  []any          `yaml:"args,omitempty"`

	// Error expects the step to fail with this kea error code.
	Error string `yaml:"error,omitempty"`
}

// Target returns the definition name the step addresses.
func (s Step) Target() string {
	switch {
	case s.Mount != "":
		return s.Mount
	case s.Unmount != "":
		return s.Unmount
	}
	return s.Logic
}

// Assertion checks the outcome of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	// Logic, Key, Props and Selector address a value (value).
	Logic    string         `yaml:"logic,omitempty"`
	Key      any            `yaml:"key,omitempty"`
	Props    map[string]any `yaml:"props,omitempty"`
	Selector string         `yaml:"selector,omitempty"`

	// Identity names a cached logic (mounted, mount_count).
	Identity string `yaml:"identity,omitempty"`

	// Path locates a state subtree (state).
	Path []string `yaml:"path,omitempty"`

	// Entry and Entries are trace entries (trace_count, trace_order).
	Entry   string   `yaml:"entry,omitempty"`
	Entries []string `yaml:"entries,omitempty"`

	Count  int `yaml:"count,omitempty"`
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertValue      = "value"
	AssertMounted    = "mounted"
	AssertMountCount = "mount_count"
	AssertState      = "state"
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
)

// LoadScenario reads a scenario file and resolves its spec paths relative
// to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" for "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, spec := range scenario.Specs {
		if !filepath.IsAbs(spec) {
			scenario.Specs[i] = filepath.Join(base, spec)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, spec := range s.Specs {
		if _, err := os.Stat(spec); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", spec)
		}
	}

	for i, step := range s.Steps {
		n := 0
		for _, set := range []bool{step.Mount != "", step.Unmount != "", step.Dispatch != ""} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("steps[%d]: exactly one of mount, unmount or dispatch is required", i)
		}
		if step.Dispatch != "" && step.Logic == "" {
			return fmt.Errorf("steps[%d]: logic is required for dispatch", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertValue:
		if a.Logic == "" || a.Selector == "" {
			return fmt.Errorf("assertions[%d]: logic and selector are required for value", index)
		}
	case AssertMounted:
		if a.Identity == "" {
			return fmt.Errorf("assertions[%d]: identity is required for mounted", index)
		}
		if _, ok := a.Expect.(bool); !ok {
			return fmt.Errorf("assertions[%d]: expect must be true or false for mounted", index)
		}
	case AssertMountCount:
		if a.Identity == "" {
			return fmt.Errorf("assertions[%d]: identity is required for mount_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertState:
		if len(a.Path) == 0 {
			return fmt.Errorf("assertions[%d]: path is required for state", index)
		}
	case AssertTraceOrder:
		if len(a.Entries) == 0 {
			return fmt.Errorf("assertions[%d]: entries list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Entry == "" {
			return fmt.Errorf("assertions[%d]: entry is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
