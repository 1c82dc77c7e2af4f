// Package schema validates YAML documents against embedded CUE
// definitions before they are decoded.
//
// Validation runs on the raw YAML, so problems are reported with the
// document's own file, line and column.
package schema

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"cuelang.org/go/encoding/yaml"
)

var (
	//go:embed settings.cue
	settingsSource string

	//go:embed script.cue
	scriptSource string

	//go:embed scenario.cue
	scenarioSource string
)

// Problem is one validation failure.
type Problem struct {
	Pos     token.Pos
	Message string
}

func (p Problem) String() string {
	if p.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", p.Pos.Filename(), p.Pos.Line(), p.Pos.Column(), p.Message)
	}
	return p.Message
}

// ValidationError lists everything wrong with a document.
type ValidationError struct {
	Definition string
	Problems   []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return fmt.Sprintf("%s: invalid", e.Definition)
	}
	msg := e.Problems[0].String()
	if n := len(e.Problems) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// Schema is a compiled CUE definition. Safe for concurrent use.
type Schema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	def  cue.Value
	name string
}

// Compile compiles src and selects definition (for example "#Settings").
func Compile(filename, src, definition string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, toValidationError(definition, filename, err)
	}

	def := v.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return nil, fmt.Errorf("definition %s not found in %s", definition, filename)
	}
	return &Schema{ctx: ctx, def: def, name: definition}, nil
}

// ValidateYAML checks a YAML document. An empty document is validated as
// an empty mapping.
func (s *Schema) ValidateYAML(filename string, data []byte) error {
	if strings.TrimSpace(string(data)) == "" {
		data = []byte("{}")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := yaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	v := s.ctx.BuildFile(f)
	if err := v.Err(); err != nil {
		return toValidationError(s.name, filename, err)
	}

	if err := s.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return toValidationError(s.name, filename, err)
	}
	return nil
}

// toValidationError flattens a CUE error. Each problem is located in
// filename when the error carries a position there.
func toValidationError(definition, filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	ve := &ValidationError{Definition: definition}
	for _, e := range errs {
		p := Problem{Message: e.Error()}
		for _, pos := range cueerrors.Positions(e) {
			if !p.Pos.IsValid() || pos.Filename() == filename {
				p.Pos = pos
			}
			if pos.Filename() == filename {
				break
			}
		}
		ve.Problems = append(ve.Problems, p)
	}
	return ve
}

var (
	settingsSchema = sync.OnceValues(func() (*Schema, error) {
		return Compile("settings.cue", settingsSource, "#Settings")
	})
	scriptSchema = sync.OnceValues(func() (*Schema, error) {
		return Compile("script.cue", scriptSource, "#Script")
	})
	scenarioSchema = sync.OnceValues(func() (*Schema, error) {
		return Compile("scenario.cue", scenarioSource, "#Scenario")
	})
)

// Settings returns the runtime settings schema.
func Settings() (*Schema, error) { return settingsSchema() }

// Script returns the replay script schema.
func Script() (*Schema, error) { return scriptSchema() }

// Scenario returns the test scenario schema.
func Scenario() (*Schema, error) { return scenarioSchema() }
