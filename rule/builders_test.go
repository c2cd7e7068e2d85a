package rule_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/ruleapi/rule"
)

func accepts(t *testing.T, r rule.Rule, value any) {
	t.Helper()
	_, err := rule.Validate(value, r)
	assert.NoError(t, err, "value %#v", value)
}

func rejects(t *testing.T, r rule.Rule, value any) {
	t.Helper()
	_, err := rule.Validate(value, r)
	assert.Error(t, err, "value %#v", value)
}

func TestComparisons(t *testing.T) {
	t.Parallel()

	t.Run("gt is strict", func(t *testing.T) {
		r := rule.Gt(10)
		accepts(t, r, 10.5)
		accepts(t, r, 11)
		rejects(t, r, 10)
		rejects(t, r, -3)
	})

	t.Run("gte accepts greater or equal", func(t *testing.T) {
		for _, bound := range []float64{-2.5, 0, 10, 1e6} {
			r := rule.Gte(bound)
			accepts(t, r, bound)
			accepts(t, r, bound+0.5)
			accepts(t, r, bound+100)
			rejects(t, r, bound-0.5)
			rejects(t, r, bound-100)
		}
	})

	t.Run("lt is strict", func(t *testing.T) {
		r := rule.Lt(10)
		accepts(t, r, 9.99)
		rejects(t, r, 10)
		rejects(t, r, 11)
	})

	t.Run("lte accepts less or equal", func(t *testing.T) {
		for _, bound := range []float64{-2.5, 0, 10, 1e6} {
			r := rule.Lte(bound)
			accepts(t, r, bound)
			accepts(t, r, bound-0.5)
			accepts(t, r, bound-100)
			rejects(t, r, bound+0.5)
			rejects(t, r, bound+100)
		}
	})

	t.Run("bounds reject non numbers", func(t *testing.T) {
		rejects(t, rule.Gte(0), "5")
		rejects(t, rule.Lte(0), nil)
	})

	t.Run("integer bounds", func(t *testing.T) {
		type age int
		r := rule.Gte(age(18))
		accepts(t, r, 18)
		rejects(t, r, 17)
	})
}

func TestStrings(t *testing.T) {
	t.Parallel()

	t.Run("string rejects empty", func(t *testing.T) {
		accepts(t, rule.String(), "a")
		rejects(t, rule.String(), "")
		rejects(t, rule.String(), 5)
	})

	t.Run("string or empty accepts empty", func(t *testing.T) {
		accepts(t, rule.StringOrEmpty(), "")
		accepts(t, rule.StringOrEmpty(), "a")
		rejects(t, rule.StringOrEmpty(), false)
	})

	t.Run("only strings", func(t *testing.T) {
		r := rule.OnlyStrings("a", "b")
		accepts(t, r, "a")
		accepts(t, r, "b")
		rejects(t, r, "")
		rejects(t, r, "c")
	})

	t.Run("only strings or empty", func(t *testing.T) {
		r := rule.OnlyStringsOrEmpty("a", "b")
		accepts(t, r, "a")
		accepts(t, r, "b")
		accepts(t, r, "")
		rejects(t, r, "c")
	})

	t.Run("typed string constants", func(t *testing.T) {
		type plan string
		const (
			free plan = "free"
			pro  plan = "pro"
		)
		r := rule.OnlyStrings(free, pro)
		accepts(t, r, "pro")
		rejects(t, r, "enterprise")
	})

	t.Run("empty allow list rejects everything", func(t *testing.T) {
		r := rule.OnlyStrings[string]()
		rejects(t, r, "a")
		rejects(t, r, "")
	})
}

func TestScalars(t *testing.T) {
	t.Parallel()

	t.Run("boolean", func(t *testing.T) {
		accepts(t, rule.Boolean(), true)
		accepts(t, rule.Boolean(), false)
		rejects(t, rule.Boolean(), "true")
		rejects(t, rule.Boolean(), 1)
	})

	t.Run("number", func(t *testing.T) {
		accepts(t, rule.Number(), 1)
		accepts(t, rule.Number(), -1.25)
		rejects(t, rule.Number(), "1")
	})

	t.Run("numbers", func(t *testing.T) {
		r := rule.Numbers(1, 2, 3)
		accepts(t, r, 2)
		accepts(t, r, 2.0)
		rejects(t, r, 4)
		rejects(t, r, "2")
	})

	t.Run("date", func(t *testing.T) {
		r := rule.Date()
		accepts(t, r, "2024-01-02T03:04:05Z")
		accepts(t, r, "2024-01-02")
		accepts(t, r, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
		accepts(t, r, 1700000000000)
		rejects(t, r, "not a date")
		rejects(t, r, "2024-13-40")
		rejects(t, r, true)
	})

	t.Run("any", func(t *testing.T) {
		for _, v := range []any{nil, 1, "", []int{1}, map[string]any{"a": 1}} {
			accepts(t, rule.Any(), v)
			accepts(t, rule.Rule{}, v)
		}
	})
}

func TestArray(t *testing.T) {
	t.Parallel()

	t.Run("items must match", func(t *testing.T) {
		r := rule.Array(rule.Number())
		accepts(t, r, []any{1, 2, 3})
		accepts(t, r, []int{})

		_, err := rule.Validate([]any{1, "x", 3}, r)
		require.Error(t, err)
		violations := rule.Violations(err)
		require.Len(t, violations, 1)
		assert.Equal(t, "/1", violations[0].Path)
	})

	t.Run("rejects non arrays", func(t *testing.T) {
		rejects(t, rule.Array(rule.Number()), 1)
		rejects(t, rule.Array(rule.Number()), map[string]any{})
	})

	t.Run("fields describe object items", func(t *testing.T) {
		r := rule.Array(rule.Fields{"id": rule.Number()})
		accepts(t, r, []any{map[string]any{"id": 1}})
		rejects(t, r, []any{map[string]any{"id": "1"}})
	})

	t.Run("nil item accepts anything", func(t *testing.T) {
		r := rule.Array(nil)
		accepts(t, r, []any{1, "x", nil, map[string]any{}})
		rejects(t, r, "x")
	})

	t.Run("array of enum strings", func(t *testing.T) {
		r := rule.Array(rule.OnlyStrings("red", "green"))
		accepts(t, r, []string{"red", "green", "red"})
		rejects(t, r, []string{"red", "blue"})
	})
}

func TestObject(t *testing.T) {
	t.Parallel()

	r := rule.Object(rule.Fields{
		"n": rule.Number(),
		"s": rule.String(),
	})

	t.Run("matching object passes", func(t *testing.T) {
		out, err := rule.Validate(map[string]any{"n": 1, "s": "a"}, r)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": json.Number("1"), "s": "a"}, out)
	})

	t.Run("failure identifies field", func(t *testing.T) {
		_, err := rule.Validate(map[string]any{"n": "x", "s": "a"}, r)
		require.Error(t, err)
		var paths []string
		for _, v := range rule.Violations(err) {
			paths = append(paths, v.Path)
		}
		assert.Equal(t, []string{"/n"}, paths)
	})

	t.Run("fields are optional", func(t *testing.T) {
		accepts(t, r, map[string]any{})
		accepts(t, r, map[string]any{"s": "only"})
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		rejects(t, r, map[string]any{"n": 1, "extra": true})
	})

	t.Run("non objects are rejected", func(t *testing.T) {
		rejects(t, r, nil)
		rejects(t, r, []any{})
		rejects(t, r, "x")
	})

	t.Run("structs are validated through their json encoding", func(t *testing.T) {
		type payload struct {
			N int    `json:"n"`
			S string `json:"s"`
		}
		accepts(t, r, payload{N: 3, S: "b"})
		rejects(t, r, payload{N: 3})
	})
}

func TestStrip(t *testing.T) {
	t.Parallel()

	t.Run("removes field from output", func(t *testing.T) {
		r := rule.Object(rule.Fields{
			"name":     rule.String(),
			"password": rule.Strip(),
		})
		out, err := rule.Validate(map[string]any{"name": "ann", "password": "hunter2"}, r)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "ann"}, out)
	})

	t.Run("absent field is fine", func(t *testing.T) {
		r := rule.Object(rule.Fields{"secret": rule.Strip()})
		out, err := rule.Validate(map[string]any{}, r)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, out)
	})

	t.Run("nested objects and arrays", func(t *testing.T) {
		r := rule.Object(rule.Fields{
			"users": rule.Array(rule.Fields{
				"id":    rule.Number(),
				"token": rule.Strip(),
			}),
			"meta": rule.Object(rule.Fields{
				"trace": rule.Strip(),
				"v":     rule.Number(),
			}),
		})
		in := map[string]any{
			"users": []any{
				map[string]any{"id": 1, "token": "a"},
				map[string]any{"id": 2},
			},
			"meta": map[string]any{"trace": []any{1, 2}, "v": 7},
		}
		out, err := rule.Validate(in, r)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"users": []any{
				map[string]any{"id": json.Number("1")},
				map[string]any{"id": json.Number("2")},
			},
			"meta": map[string]any{"v": json.Number("7")},
		}, out)
	})
}

func TestMarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule rule.Rule
		want string
	}{
		{name: "gte", rule: rule.Gte(5), want: `{"minimum":5,"type":"number"}`},
		{name: "lt", rule: rule.Lt(1.5), want: `{"exclusiveMaximum":1.5,"type":"number"}`},
		{name: "string", rule: rule.String(), want: `{"minLength":1,"type":"string"}`},
		{name: "only or empty", rule: rule.OnlyStringsOrEmpty("a"), want: `{"enum":["a",""],"type":"string"}`},
		{name: "array", rule: rule.Array(rule.Boolean()), want: `{"items":{"type":"boolean"},"type":"array"}`},
		{name: "zero rule", rule: rule.Rule{}, want: `{}`},
		{
			name: "object",
			rule: rule.Object(rule.Fields{"a": rule.Any()}),
			want: `{"additionalProperties":false,"properties":{"a":{}},"type":"object"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.rule)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
