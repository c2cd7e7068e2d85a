package rule_test

import (
	"fmt"

	"github.com/atvirokodosprendimai/ruleapi/rule"
)

func ExampleValidate() {
	login := rule.Object(rule.Fields{
		"name":     rule.String(),
		"password": rule.Strip(),
	})

	out, err := rule.Validate(map[string]any{"name": "ann", "password": "hunter2"}, login)
	fmt.Println(out, err)
	// Output: map[name:ann] <nil>
}

func ExampleViolations() {
	order := rule.Object(rule.Fields{
		"qty":   rule.Gte(1),
		"sizes": rule.Array(rule.OnlyStrings("s", "m", "l")),
	})

	_, err := rule.Validate(map[string]any{"qty": 1, "sizes": []string{"m", "xl"}}, order)
	for _, v := range rule.Violations(err) {
		fmt.Println(v.Path)
	}
	// Output: /sizes/1
}
