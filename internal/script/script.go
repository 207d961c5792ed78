// Package script replays a list of mutations against a model tree.
//
// A script is a sequence of steps:
//
//	steps:
//	  - op: begin
//	  - op: set
//	    path: address.city
//	    value: Paris
//	  - op: set
//	    path: age
//	    value: 37
//	    silent: true
//	  - op: end
//	  - op: get
//	    path: address.city
//
// Values go through model.Set, which normalises numbers to float64 so they
// compare equal to the values a model decodes from JSON.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelkit/internal/common/fsutil"
	"modelkit/internal/model"
	"modelkit/internal/property"
)

// Step operations.
const (
	OpSet   = "set"
	OpGet   = "get"
	OpBegin = "begin"
	OpEnd   = "end"
)

// Step is one script instruction.
type Step struct {
	Op     string `json:"op" yaml:"op" toml:"op"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	Silent bool   `json:"silent,omitempty" yaml:"silent,omitempty" toml:"silent,omitempty"`
}

// Script is an ordered list of steps.
type Script struct {
	Steps []Step `json:"steps" yaml:"steps" toml:"steps"`
}

// unknownOpError signals a step whose op is not recognised.
type unknownOpError struct{ op string }

func (e unknownOpError) Error() string { return "unknown op: " + e.op }

// IsUnknownOp reports whether err indicates an unrecognised step op.
func IsUnknownOp(err error) bool {
	var target unknownOpError
	return errors.As(err, &target)
}

// Load reads a script file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Script, error) {
	var s Script
	b, err := fsutil.ReadFile("script", path)
	if err != nil {
		return s, err
	}
	switch ext := fsutil.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &s); err != nil {
			return s, err
		}
	case ".json":
		if err := json.Unmarshal(b, &s); err != nil {
			return s, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &s); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unsupported script extension: %s", ext)
	}
	return s, nil
}

// Run applies s to m. get steps print "path = value" lines to w. A
// transaction opened by the script is always ended before Run returns, so
// queued changes are delivered even when a later step fails.
func Run(m *model.Model, s Script, w io.Writer) error {
	r := m.Router()
	opened := false
	defer func() {
		if opened {
			r.EndTransaction()
		}
	}()
	for i, st := range s.Steps {
		switch strings.ToLower(st.Op) {
		case OpBegin:
			r.StartTransaction()
			opened = true
		case OpEnd:
			r.EndTransaction()
			opened = false
		case OpSet:
			if st.Path == "" || st.Value == nil {
				return fmt.Errorf("step %d: set needs path and value", i)
			}
			if _, err := m.Set(st.Path, st.Value, property.SetOptions{SuppressNotifications: st.Silent}); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case OpGet:
			v, err := m.Get(st.Path)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			fmt.Fprintf(w, "%s = %s\n", st.Path, Format(v))
		default:
			return fmt.Errorf("step %d: %w", i, unknownOpError{op: st.Op})
		}
	}
	return nil
}

// Format renders a value as compact JSON, or with %v when it has no JSON
// form.
func Format(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
