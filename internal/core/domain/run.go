package domain

import (
	"encoding/json"
	"time"

	"github.com/atvirokodosprendimai/ruleapi/rule"
)

// ValidationRun records one application of a rule set to a document.
type ValidationRun struct {
	ID         string           `json:"id"`
	RuleSet    string           `json:"rule_set"`
	Valid      bool             `json:"valid"`
	Violations []rule.Violation `json:"violations,omitempty"`
	Actor      string           `json:"actor"`
	At         time.Time        `json:"at"`
}

func (r ValidationRun) Outcome() string {
	if r.Valid {
		return "accepted"
	}
	return "rejected"
}

type ValidationResult struct {
	Run   ValidationRun
	Value json.RawMessage
}

type RunFilter struct {
	RuleSet string
	Limit   int
}
