package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resourceName = "mem://rule.json"

// Rule is an opaque validation constraint. The zero Rule accepts any value.
type Rule struct {
	n *node
}

type node struct {
	schema map[string]any
	strip  bool
	fields map[string]Rule
	items  *Rule

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// Builder is implemented by everything that can stand in for a Rule.
type Builder interface {
	Rule() Rule
}

// Fields maps object keys to the rules their values must satisfy.
type Fields map[string]Rule

// Rule returns the object rule for f.
func (f Fields) Rule() Rule {
	return Object(f)
}

// Rule returns r, so a Rule is its own Builder.
func (r Rule) Rule() Rule {
	return r
}

var anyNode = &node{schema: map[string]any{}}

func (r Rule) node() *node {
	if r.n == nil {
		return anyNode
	}
	return r.n
}

// MarshalJSON encodes the JSON Schema document the rule evaluates.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.node().schema)
}

func (r Rule) schema() map[string]any {
	return r.node().schema
}

// compile builds the library schema once per rule.
func (r Rule) compile() (*jsonschema.Schema, error) {
	n := r.node()
	n.once.Do(func() {
		n.compiled, n.err = compileSchema(n.schema)
	})
	return n.compiled, n.err
}

func compileSchema(doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode rule schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.AssertFormat = true
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add rule schema: %w", err)
	}
	sch, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile rule schema: %w", err)
	}
	return sch, nil
}

func newRule(schema map[string]any) Rule {
	return Rule{n: &node{schema: schema}}
}
