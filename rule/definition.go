package rule

import (
	"errors"
	"fmt"
	"sort"
)

// Definition kinds, one per constructor.
const (
	KindObject             = "object"
	KindAny                = "any"
	KindStrip              = "strip"
	KindBoolean            = "boolean"
	KindNumber             = "number"
	KindNumbers            = "numbers"
	KindDate               = "date"
	KindGt                 = "gt"
	KindGte                = "gte"
	KindLt                 = "lt"
	KindLte                = "lte"
	KindString             = "string"
	KindStringOrEmpty      = "stringOrEmpty"
	KindOnlyStrings        = "onlyStrings"
	KindOnlyStringsOrEmpty = "onlyStringsOrEmpty"
	KindArray              = "array"
)

var (
	ErrUnknownKind  = errors.New("unknown rule kind")
	ErrMissingBound = errors.New("missing bound")
	ErrMissingItems = errors.New("missing items")
)

// Definition describes a rule as data. It decodes from JSON or YAML:
//
//	kind: object
//	fields:
//	  age: {kind: gte, bound: 18}
//	  plan: {kind: onlyStrings, strings: [free, pro]}
//	  tags: {kind: array, items: {kind: string}}
type Definition struct {
	Kind    string                 `json:"kind" yaml:"kind"`
	Bound   *float64               `json:"bound,omitempty" yaml:"bound,omitempty"`
	Numbers []float64              `json:"numbers,omitempty" yaml:"numbers,omitempty"`
	Strings []string               `json:"strings,omitempty" yaml:"strings,omitempty"`
	Fields  map[string]*Definition `json:"fields,omitempty" yaml:"fields,omitempty"`
	Items   *Definition            `json:"items,omitempty" yaml:"items,omitempty"`
}

// Build turns d into a Rule using the package constructors.
func (d Definition) Build() (Rule, error) {
	return d.build("$")
}

func (d Definition) build(path string) (Rule, error) {
	switch d.Kind {
	case KindObject:
		fields := make(Fields, len(d.Fields))
		for _, name := range sortedKeys(d.Fields) {
			child := d.Fields[name]
			if child == nil {
				fields[name] = Any()
				continue
			}
			r, err := child.build(path + "." + name)
			if err != nil {
				return Rule{}, err
			}
			fields[name] = r
		}
		return Object(fields), nil
	case KindAny:
		return Any(), nil
	case KindStrip:
		return Strip(), nil
	case KindBoolean:
		return Boolean(), nil
	case KindNumber:
		return Number(), nil
	case KindNumbers:
		return Numbers(d.Numbers...), nil
	case KindDate:
		return Date(), nil
	case KindGt, KindGte, KindLt, KindLte:
		if d.Bound == nil {
			return Rule{}, fmt.Errorf("%s: %s: %w", path, d.Kind, ErrMissingBound)
		}
		return boundRule(d.Kind, *d.Bound), nil
	case KindString:
		return String(), nil
	case KindStringOrEmpty:
		return StringOrEmpty(), nil
	case KindOnlyStrings:
		return OnlyStrings(d.Strings...), nil
	case KindOnlyStringsOrEmpty:
		return OnlyStringsOrEmpty(d.Strings...), nil
	case KindArray:
		if d.Items == nil {
			return Rule{}, fmt.Errorf("%s: %w", path, ErrMissingItems)
		}
		item, err := d.Items.build(path + "[]")
		if err != nil {
			return Rule{}, err
		}
		return Array(item), nil
	default:
		return Rule{}, fmt.Errorf("%s: %q: %w", path, d.Kind, ErrUnknownKind)
	}
}

func boundRule(kind string, bound float64) Rule {
	switch kind {
	case KindGt:
		return Gt(bound)
	case KindGte:
		return Gte(bound)
	case KindLt:
		return Lt(bound)
	default:
		return Lte(bound)
	}
}

// sortedKeys keeps error reporting deterministic.
func sortedKeys(m map[string]*Definition) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
