package rule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is a single failed constraint.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Validate checks value against r. Value may be any JSON-encodable Go value;
// it is converted to the JSON data model before evaluation.
//
// On success the returned value is the normalized input with Strip fields
// removed; numbers are json.Number. A constraint failure is reported as the
// library's *jsonschema.ValidationError, unwrapped.
func Validate(value any, r Rule) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return ValidateJSON(raw, r)
}

// ValidateJSON is Validate for an already encoded JSON document.
func ValidateJSON(data []byte, r Rule) (any, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	sch, err := r.compile()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(v); err != nil {
		return nil, err
	}
	return strip(r, v), nil
}

// ValidateInto validates value against r and decodes the validated value into
// dst.
func ValidateInto(value any, r Rule, dst any) error {
	out, err := Validate(value, r)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode validated value: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode validated value: %w", err)
	}
	return nil
}

// Violations flattens a validation error into its leaf failures. Errors that
// did not come from the validator yield a single violation at the root.
func Violations(err error) []Violation {
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Violation{{Path: "", Message: err.Error()}}
	}
	return collectViolations(ve)
}

func collectViolations(ve *jsonschema.ValidationError) []Violation {
	var out []Violation
	for _, cause := range ve.Causes {
		out = append(out, collectViolations(cause)...)
	}
	if len(ve.Causes) == 0 {
		out = append(out, Violation{Path: ve.InstanceLocation, Message: ve.Message})
	}
	return out
}

func decodeJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, errors.New("decode value: extra json tokens")
	}
	return v, nil
}

// strip removes Strip fields from v following the shape of r. v has already
// passed validation, so shapes agree wherever r constrains them.
func strip(r Rule, v any) any {
	n := r.node()
	switch {
	case n.fields != nil:
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		for name, child := range n.fields {
			val, present := obj[name]
			if !present {
				continue
			}
			if child.node().strip {
				delete(obj, name)
				continue
			}
			obj[name] = strip(child, val)
		}
		return obj
	case n.items != nil:
		arr, ok := v.([]any)
		if !ok {
			return v
		}
		for i, item := range arr {
			arr[i] = strip(*n.items, item)
		}
		return arr
	}
	return v
}
