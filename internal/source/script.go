package source

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kryten/internal/callback"
	"github.com/roach88/kryten/internal/schema"
	"github.com/roach88/kryten/internal/variant"
)

// Script event names.
const (
	EventConnect    = "connect"
	EventUpdate     = "update"
	EventDisconnect = "disconnect"
	EventLog        = "log"
)

// Script is a recorded sequence of channel events to replay.
//
//	name: tank fill
//	steps:
//	  - channel: TANK:LEVEL
//	    event: connect
//	    host: ioc1:5064
//	  - after: 250ms
//	    channel: TANK:LEVEL
//	    event: update
//	    value: 3.5
//
// Each channel's steps run in order on their own goroutine; "after" is
// the delay since that channel's previous step.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted event.
type Step struct {
	After   string      `yaml:"after"`
	Channel string      `yaml:"channel"`
	Event   string      `yaml:"event"`
	Value   yaml.Node   `yaml:"value"`
	Values  []yaml.Node `yaml:"values"`
	Host    string      `yaml:"host"`
	Text    string      `yaml:"text"`

	FieldType   string   `yaml:"field_type"`
	Elements    int      `yaml:"elements"`
	EnumStrings []string `yaml:"enum_strings"`
	Status      int      `yaml:"status"`
	Severity    int      `yaml:"severity"`

	delay time.Duration
}

// Delay returns the parsed After duration.
func (s Step) Delay() time.Duration { return s.delay }

// Texts returns the scalar text of the step's value or values.
func (s Step) Texts() []string {
	if len(s.Values) > 0 {
		out := make([]string, len(s.Values))
		for i, n := range s.Values {
			out[i] = n.Value
		}
		return out
	}
	if s.Value.Kind == 0 {
		return nil
	}
	return []string{s.Value.Value}
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(path, data)
}

// ParseScript validates and decodes script data. filename is used in
// error messages.
func ParseScript(filename string, data []byte) (*Script, error) {
	sch, err := schema.Script()
	if err != nil {
		return nil, err
	}
	if err := sch.ValidateYAML(filename, data); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", filename, err)
	}

	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.After != "" {
			d, err := time.ParseDuration(st.After)
			if err != nil {
				return nil, fmt.Errorf("step %d: after: %w", i+1, err)
			}
			st.delay = d
		}
		if st.Event == EventUpdate && len(st.Texts()) == 0 {
			return nil, fmt.Errorf("step %d: update of %s has no value", i+1, st.Channel)
		}
	}
	return &sc, nil
}

// Channels returns the distinct channel names in first-appearance order.
func (sc *Script) Channels() []string {
	var out []string
	for _, st := range sc.Steps {
		if !slices.Contains(out, st.Channel) {
			out = append(out, st.Channel)
		}
	}
	return out
}

// ParseFieldType maps a DBF_* name to a FieldType.
func ParseFieldType(name string) (callback.FieldType, error) {
	for ft := callback.FieldString; ft <= callback.FieldNoAccess; ft++ {
		if ft.String() == name {
			return ft, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", name)
}

// Values converts scalar texts to values of field type ft, the way the
// server converts a native value to the requested type. Enum texts may be
// state indices or state names.
func Values(texts []string, ft callback.FieldType, enumStrings []string) ([]variant.Value, error) {
	out := make([]variant.Value, 0, len(texts))
	for _, text := range texts {
		v, err := value(text, ft, enumStrings)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func value(text string, ft callback.FieldType, enumStrings []string) (variant.Value, error) {
	switch ft {
	case callback.FieldString:
		return variant.NewString(text)

	case callback.FieldShort, callback.FieldChar, callback.FieldLong:
		if n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
			return variant.Integer(n), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a %s value", text, ft)
		}
		return variant.Integer(int64(f)), nil

	case callback.FieldFloat, callback.FieldDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a %s value", text, ft)
		}
		return variant.Floating(f), nil

	case callback.FieldEnum:
		if i := slices.Index(enumStrings, text); i >= 0 {
			return variant.Integer(i), nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			return variant.Integer(n), nil
		}
		return nil, fmt.Errorf("%q is not a state of the enum", text)
	}
	return nil, fmt.Errorf("cannot read values of type %s", ft)
}
