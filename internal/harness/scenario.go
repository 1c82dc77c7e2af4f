package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kryten/internal/dispatch"
	"github.com/roach88/kryten/internal/schema"
	"github.com/roach88/kryten/internal/source"
)

// Scenario is a scripted monitoring session with its expected dispatches.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is monitoring configuration text, one entry per line.
	Config string `yaml:"config"`

	// LaunchExit is the exit code every launched command reports.
	LaunchExit int `yaml:"launch_exit"`

	// Events are delivered in order, each fully processed before the next.
	Events []source.Step `yaml:"events"`

	// Expect, when present, is the complete ordered list of dispatches.
	Expect []Expectation `yaml:"expect,omitempty"`

	// ExitCode, when set, requires the session to end with a quit request
	// carrying this code.
	ExitCode *int `yaml:"exit_code,omitempty"`

	// Assertions validate the final trace and channel states.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expectation is one expected dispatch.
type Expectation struct {
	Status  dispatch.Status `yaml:"status"`
	Command string          `yaml:"command"`
}

// Assertion validates the trace or a channel's final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some dispatch matches the given fields
	// - "trace_order": commands appear in this order
	// - "trace_count": exactly Count dispatches match the given fields
	// - "final_state": channel ends in State (and Connected, if given)
	Type string `yaml:"type"`

	// Channel, Status and Command filter dispatches; empty fields match
	// anything. final_state uses Channel alone.
	Channel string          `yaml:"channel,omitempty"`
	Status  dispatch.Status `yaml:"status,omitempty"`
	Command string          `yaml:"command,omitempty"`

	// Commands is the expected command order (used by trace_order).
	Commands []string `yaml:"commands,omitempty"`

	// Count is the expected number of matching dispatches (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// State and Connected are the expected final channel state (used by final_state).
	State     string `yaml:"state,omitempty"`
	Connected *bool  `yaml:"connected,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads, schema-checks and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario checks data against the scenario schema and decodes it.
// filename is used in error messages.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	sch, err := schema.Scenario()
	if err != nil {
		return nil, err
	}
	if err := sch.ValidateYAML(filename, data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Strict decoding catches fields the schema allows but this type lacks.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config is required")
	}

	for i, ev := range s.Events {
		if ev.Event == source.EventUpdate && len(ev.Texts()) == 0 {
			return fmt.Errorf("events[%d]: update of %s has no value", i, ev.Channel)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Channel == "" && a.Status == "" && a.Command == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs channel, status or command", index)
		}
	case AssertTraceOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Channel == "" {
			return fmt.Errorf("assertions[%d]: channel is required for final_state", index)
		}
		if a.State == "" && a.Connected == nil {
			return fmt.Errorf("assertions[%d]: state or connected is required for final_state", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
