package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/ruleapi/rule"
)

var (
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidDefinition = errors.New("invalid rule definition")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrNotFound          = errors.New("not found")
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// RuleSet is a named rule definition.
type RuleSet struct {
	Name       string
	Definition json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func ValidateName(name string) error {
	if name == "" || !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// ParseDefinition decodes and builds a stored definition.
func ParseDefinition(raw json.RawMessage) (rule.Definition, rule.Rule, error) {
	var def rule.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return rule.Definition{}, rule.Rule{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	built, err := def.Build()
	if err != nil {
		return rule.Definition{}, rule.Rule{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return def, built, nil
}

type RuleSetFilter struct {
	Prefix    string
	AfterName string
	Limit     int
}

func (f RuleSetFilter) Validate() error {
	if f.Prefix != "" && !namePattern.MatchString(f.Prefix) {
		return ErrInvalidFilter
	}
	if f.AfterName != "" {
		if err := ValidateName(f.AfterName); err != nil {
			return ErrInvalidFilter
		}
	}
	return nil
}

// ErrRuleViolation is returned when data does not satisfy a rule set.
type ErrRuleViolation struct {
	RunID      string
	Violations []rule.Violation
}

func (e *ErrRuleViolation) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Path == "" {
			msgs = append(msgs, v.Message)
			continue
		}
		msgs = append(msgs, v.Path+": "+v.Message)
	}
	return fmt.Sprintf("rule validation failed: %s", strings.Join(msgs, "; "))
}
