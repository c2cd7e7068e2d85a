package rule

// Numeric is the set of types accepted as numeric literals and bounds.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Object requires an object whose keys satisfy the given rules. Every field is
// optional and keys not listed in fields are rejected.
func Object(fields Fields) Rule {
	properties := make(map[string]any, len(fields))
	children := make(map[string]Rule, len(fields))
	for name, r := range fields {
		properties[name] = r.schema()
		children[name] = r
	}
	return Rule{n: &node{
		schema: map[string]any{
			"type":                 "object",
			"properties":           properties,
			"additionalProperties": false,
		},
		fields: children,
	}}
}

// Any matches any data type.
func Any() Rule {
	return newRule(map[string]any{})
}

// Strip accepts any value and removes the property from the validated object.
func Strip() Rule {
	return Rule{n: &node{schema: map[string]any{}, strip: true}}
}

// Boolean requires a boolean.
func Boolean() Rule {
	return newRule(map[string]any{"type": "boolean"})
}

// Number requires a number.
func Number() Rule {
	return newRule(map[string]any{"type": "number"})
}

// Numbers requires a number equal to one of allowed.
func Numbers[T Numeric](allowed ...T) Rule {
	enum := make([]any, 0, len(allowed))
	seen := make(map[T]struct{}, len(allowed))
	for _, v := range allowed {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		enum = append(enum, v)
	}
	return newRule(enumSchema("number", enum))
}

// Date requires a date: an RFC 3339 date-time, a full-date, or a numeric
// timestamp.
func Date() Rule {
	return newRule(map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string", "format": "date-time"},
			map[string]any{"type": "string", "format": "date"},
			map[string]any{"type": "number"},
		},
	})
}

// Gt requires a number strictly greater than bound.
func Gt[T Numeric](bound T) Rule {
	return newRule(map[string]any{"type": "number", "exclusiveMinimum": bound})
}

// Gte requires a number greater than or equal to bound.
func Gte[T Numeric](bound T) Rule {
	return newRule(map[string]any{"type": "number", "minimum": bound})
}

// Lt requires a number strictly less than bound.
func Lt[T Numeric](bound T) Rule {
	return newRule(map[string]any{"type": "number", "exclusiveMaximum": bound})
}

// Lte requires a number less than or equal to bound.
func Lte[T Numeric](bound T) Rule {
	return newRule(map[string]any{"type": "number", "maximum": bound})
}

// String requires a non-empty string.
func String() Rule {
	return newRule(map[string]any{"type": "string", "minLength": 1})
}

// StringOrEmpty requires a string that may be empty.
func StringOrEmpty() Rule {
	return newRule(map[string]any{"type": "string"})
}

// OnlyStrings requires a string equal to one of allowed. To validate a list of
// such strings wrap the rule with Array.
func OnlyStrings[T ~string](allowed ...T) Rule {
	return newRule(enumSchema("string", stringEnum(allowed)))
}

// OnlyStringsOrEmpty requires a string that is empty or equal to one of
// allowed. To validate a list of such strings wrap the rule with Array.
func OnlyStringsOrEmpty[T ~string](allowed ...T) Rule {
	enum := stringEnum(allowed)
	if !containsEmpty(allowed) {
		enum = append(enum, "")
	}
	return newRule(enumSchema("string", enum))
}

// Array requires an array whose every item satisfies item. Pass a Rule, or
// Fields to describe arrays of objects. A nil item accepts items of any type,
// the same as the zero Rule.
func Array(item Builder) Rule {
	var r Rule
	if item != nil {
		r = item.Rule()
	}
	return Rule{n: &node{
		schema: map[string]any{"type": "array", "items": r.schema()},
		items:  &r,
	}}
}

// enumSchema restricts typ to enum. An empty enum matches nothing.
func enumSchema(typ string, enum []any) map[string]any {
	if len(enum) == 0 {
		return map[string]any{"type": typ, "not": map[string]any{}}
	}
	return map[string]any{"type": typ, "enum": enum}
}

func stringEnum[T ~string](values []T) []any {
	enum := make([]any, 0, len(values)+1)
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		enum = append(enum, string(v))
	}
	return enum
}

func containsEmpty[T ~string](values []T) bool {
	for _, v := range values {
		if v == "" {
			return true
		}
	}
	return false
}
