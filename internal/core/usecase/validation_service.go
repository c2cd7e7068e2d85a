package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/ports"
	"github.com/atvirokodosprendimai/ruleapi/rule"
)

// ValidationService applies named rule sets and records every run.
type ValidationService struct {
	ruleSets *RuleSetService
	runs     ports.ValidationRunStore
	now      func() time.Time
	newID    func() string
}

func NewValidationService(ruleSets *RuleSetService, runs ports.ValidationRunStore) *ValidationService {
	return &ValidationService{
		ruleSets: ruleSets,
		runs:     runs,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Validate checks data against the named rule set. Rejected data returns the
// recorded result together with *domain.ErrRuleViolation.
func (s *ValidationService) Validate(ctx context.Context, name string, data json.RawMessage, actor string) (domain.ValidationResult, error) {
	r, err := s.ruleSets.Rule(ctx, name)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if actor == "" {
		actor = "api"
	}

	run := domain.ValidationRun{
		ID:      s.newID(),
		RuleSet: name,
		Actor:   actor,
		At:      s.now(),
	}

	out, verr := rule.ValidateJSON(data, r)
	var value json.RawMessage
	switch {
	case verr == nil:
		run.Valid = true
		value, err = json.Marshal(out)
		if err != nil {
			return domain.ValidationResult{}, fmt.Errorf("encode validated value: %w", err)
		}
	case isViolation(verr):
		run.Violations = rule.Violations(verr)
	default:
		// Undecodable input is reported as a violation at the document root.
		run.Violations = []rule.Violation{{Message: verr.Error()}}
	}

	msg, err := newRunMessage(s.newID(), run)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if err := s.runs.RecordWithEvent(ctx, run, msg); err != nil {
		return domain.ValidationResult{}, fmt.Errorf("record run: %w", err)
	}

	result := domain.ValidationResult{Run: run, Value: value}
	if !run.Valid {
		return result, &domain.ErrRuleViolation{RunID: run.ID, Violations: run.Violations}
	}
	return result, nil
}

func (s *ValidationService) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.ValidationRun, error) {
	if _, err := s.ruleSets.Get(ctx, filter.RuleSet); err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.runs.List(ctx, filter)
}

func isViolation(err error) bool {
	var ve *jsonschema.ValidationError
	return errors.As(err, &ve)
}

func newRunMessage(eventID string, run domain.ValidationRun) (domain.OutboxMessage, error) {
	eventType := domain.EventValidationAccepted
	if !run.Valid {
		eventType = domain.EventValidationRejected
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("encode run payload: %w", err)
	}
	envelope, err := json.Marshal(domain.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		SchemaVersion: domain.CurrentEventSchemaVersion,
		RuleSet:       run.RuleSet,
		RunID:         run.ID,
		OccurredAt:    run.At,
		Actor:         run.Actor,
		Payload:       payload,
	})
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("encode event envelope: %w", err)
	}

	return domain.OutboxMessage{
		EventID:     eventID,
		Topic:       "rules." + run.RuleSet + "." + run.Outcome(),
		PayloadJSON: envelope,
	}, nil
}
