// Package spacefile loads parameter space definitions from YAML or JSON.
//
// A file either lists parameters directly:
//
//	parameters:
//	  - {name: fast_period, type: int, from: 5, to: 50, step: 5}
//	  - {name: mode, type: string, values: [long, short, both]}
//
// or groups them into named executions, whose parameters are addressed as
// "<execution>.<parameter>":
//
//	executions:
//	  - name: entry
//	    parameters: [...]
//	  - name: exit
//	    parameters: [...]
package spacefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
)

// ParameterDef declares one parameter domain
type ParameterDef struct {
	Name   string          `yaml:"name" json:"name"`
	Type   paramspace.Kind `yaml:"type" json:"type"`
	From   float64         `yaml:"from,omitempty" json:"from,omitempty"`
	To     float64         `yaml:"to,omitempty" json:"to,omitempty"`
	Step   float64         `yaml:"step,omitempty" json:"step,omitempty"`
	Values []string        `yaml:"values,omitempty" json:"values,omitempty"`
}

// ExecutionDef groups the parameters of one named execution
type ExecutionDef struct {
	Name       string         `yaml:"name" json:"name"`
	Parameters []ParameterDef `yaml:"parameters" json:"parameters"`
}

// Definition is a parsed space file
type Definition struct {
	Parameters []ParameterDef `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Executions []ExecutionDef `yaml:"executions,omitempty" json:"executions,omitempty"`
}

// Load reads a definition from path; the format follows the extension and
// defaults to YAML.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read space file: %w", err)
	}
	if filepath.Ext(path) == ".json" {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// ParseYAML parses and validates a YAML definition. Unknown fields are
// rejected so a misspelt key does not silently drop a bound.
func ParseYAML(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse space yaml: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseJSON parses and validates a JSON definition
func ParseJSON(data []byte) (*Definition, error) {
	var def Definition
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse space json: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the file shape; domain bounds are checked when the spaces
// are built.
func (d *Definition) Validate() error {
	var errs paramspace.ValidationErrors

	switch {
	case len(d.Parameters) > 0 && len(d.Executions) > 0:
		errs = append(errs, paramspace.ValidationError{Field: "executions", Message: "cannot be combined with top-level parameters"})
	case len(d.Parameters) == 0 && len(d.Executions) == 0:
		errs = append(errs, paramspace.ValidationError{Field: "parameters", Message: "space defines no parameters"})
	}

	seen := make(map[string]bool, len(d.Executions))
	for i, e := range d.Executions {
		field := fmt.Sprintf("executions[%d]", i)
		if e.Name == "" {
			errs = append(errs, paramspace.ValidationError{Field: field + ".name", Message: "is required"})
		} else if seen[e.Name] {
			errs = append(errs, paramspace.ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate execution %q", e.Name)})
		}
		seen[e.Name] = true
		if len(e.Parameters) == 0 {
			errs = append(errs, paramspace.ValidationError{Field: field + ".parameters", Message: "execution defines no parameters"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Multi reports whether the file declares named executions
func (d *Definition) Multi() bool {
	return len(d.Executions) > 0
}

// Spaces builds one space per execution. A single-execution file yields one
// space under the empty name.
func (d *Definition) Spaces() ([]paramspace.Execution, []*paramspace.Space, error) {
	if !d.Multi() {
		space, err := buildSpace(d.Parameters)
		if err != nil {
			return nil, nil, err
		}
		return []paramspace.Execution{{Enumerator: space.Grid()}}, []*paramspace.Space{space}, nil
	}

	execs := make([]paramspace.Execution, 0, len(d.Executions))
	spaces := make([]*paramspace.Space, 0, len(d.Executions))
	for _, e := range d.Executions {
		space, err := buildSpace(e.Parameters)
		if err != nil {
			return nil, nil, fmt.Errorf("execution %q: %w", e.Name, err)
		}
		execs = append(execs, paramspace.Execution{Name: e.Name, Enumerator: space.Grid()})
		spaces = append(spaces, space)
	}
	return execs, spaces, nil
}

// Space returns the whole definition as one space; execution parameters are
// prefixed with their execution name.
func (d *Definition) Space() (*paramspace.Space, error) {
	execs, spaces, err := d.Spaces()
	if err != nil {
		return nil, err
	}
	if !d.Multi() {
		return spaces[0], nil
	}

	prefixed := make([]*paramspace.Space, len(spaces))
	for i, s := range spaces {
		prefixed[i] = paramspace.Prefixed(execs[i].Name, s)
	}
	return paramspace.Merge(prefixed...)
}

// Enumerator returns a grid over the whole definition. Multi-execution files
// are walked by a composite whose configurations carry prefixed keys.
func (d *Definition) Enumerator() (paramspace.Enumerator, error) {
	execs, spaces, err := d.Spaces()
	if err != nil {
		return nil, err
	}
	if !d.Multi() {
		return spaces[0].Grid(), nil
	}
	return paramspace.NewComposite(execs...), nil
}

func buildSpace(params []ParameterDef) (*paramspace.Space, error) {
	b := paramspace.NewBuilder()
	var errs paramspace.ValidationErrors

	for _, p := range params {
		switch p.Type {
		case paramspace.KindInteger:
			if p.From != float64(int64(p.From)) || p.To != float64(int64(p.To)) || p.Step != float64(int64(p.Step)) {
				errs = append(errs, paramspace.ValidationError{Field: p.Name, Message: "integer bounds and step must be whole numbers"})
				continue
			}
			b.AddInteger(p.Name, int64(p.From), int64(p.To), int64(p.Step))
		case paramspace.KindReal:
			b.AddReal(p.Name, p.From, p.To, p.Step)
		case paramspace.KindString:
			b.AddStringEnum(p.Name, p.Values)
		case paramspace.KindSubConfig:
			b.AddSubConfigRef(p.Name, p.Values)
		default:
			errs = append(errs, paramspace.ValidationError{
				Field:   p.Name,
				Message: fmt.Sprintf("unknown parameter type %q (want int, real, string or subconfig)", p.Type),
			})
		}
	}

	space, err := b.Build()
	if err != nil {
		var built paramspace.ValidationErrors
		if errors.As(err, &built) {
			errs = append(errs, built...)
		} else {
			return nil, err
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return space, nil
}
