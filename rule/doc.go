// Package rule is a small, domain-named front end for JSON Schema validation.
//
// Every exported constructor (String, Number, Gte, OnlyStrings, Array, Object,
// ...) returns a Rule: an immutable JSON Schema fragment that the underlying
// github.com/santhosh-tekuri/jsonschema/v5 library compiles and evaluates.
// The package adds no validation logic of its own. Constructors never fail and
// have no side effects; problems are reported only when Validate runs.
//
// # Usage
//
//	signup := rule.Object(rule.Fields{
//	    "email":    rule.String(),
//	    "age":      rule.Gte(18),
//	    "plan":     rule.OnlyStrings("free", "pro"),
//	    "tags":     rule.Array(rule.StringOrEmpty()),
//	    "password": rule.Strip(),
//	})
//
//	value, err := rule.Validate(input, signup)
//	if err != nil {
//	    for _, v := range rule.Violations(err) {
//	        log.Printf("%s: %s", v.Path, v.Message)
//	    }
//	}
//
// Rules are safe for concurrent use. The compiled schema is built on first use
// and reused afterwards, so rules are best declared once at package level.
//
// Rules can also be described declaratively with Definition, which maps a
// JSON or YAML document onto the same constructors.
package rule
