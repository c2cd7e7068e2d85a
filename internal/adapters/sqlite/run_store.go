package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/ruleapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
	"github.com/atvirokodosprendimai/ruleapi/rule"
)

type validationRunModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	RuleSet        string    `gorm:"column:rule_set;not null"`
	Valid          bool      `gorm:"column:valid;not null"`
	ViolationsJSON string    `gorm:"column:violations_json;not null"`
	Actor          string    `gorm:"column:actor;not null"`
	At             time.Time `gorm:"column:at;not null"`
}

func (validationRunModel) TableName() string {
	return "validation_runs"
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

// RunStore writes validation runs and their outbox events atomically.
type RunStore struct {
	db *gormsqlite.DB
}

func NewRunStore(db *gormsqlite.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) RecordWithEvent(ctx context.Context, run domain.ValidationRun, msg domain.OutboxMessage) error {
	violations := run.Violations
	if violations == nil {
		violations = []rule.Violation{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("encode violations: %w", err)
	}

	at := run.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	runModel := validationRunModel{
		ID:             run.ID,
		RuleSet:        run.RuleSet,
		Valid:          run.Valid,
		ViolationsJSON: string(violationsJSON),
		Actor:          run.Actor,
		At:             at,
	}
	now := time.Now().UTC()
	eventModel := outboxEventModel{
		EventID:       msg.EventID,
		Topic:         msg.Topic,
		PayloadJSON:   string(msg.PayloadJSON),
		Status:        "pending",
		NextAttemptAt: now,
		CreatedAt:     now,
	}

	return s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&runModel).Error; err != nil {
			return fmt.Errorf("insert validation run: %w", err)
		}
		if err := tx.Create(&eventModel).Error; err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
}

func (s *RunStore) List(ctx context.Context, filter domain.RunFilter) ([]domain.ValidationRun, error) {
	var rows []validationRunModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("rule_set = ?", filter.RuleSet).
			Order("at DESC").
			Order("id DESC").
			Limit(filter.Limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}

	runs := make([]domain.ValidationRun, 0, len(rows))
	for _, row := range rows {
		var violations []rule.Violation
		if err := json.Unmarshal([]byte(row.ViolationsJSON), &violations); err != nil {
			return nil, fmt.Errorf("decode violations for run %s: %w", row.ID, err)
		}
		if len(violations) == 0 {
			violations = nil
		}
		runs = append(runs, domain.ValidationRun{
			ID:         row.ID,
			RuleSet:    row.RuleSet,
			Valid:      row.Valid,
			Violations: violations,
			Actor:      row.Actor,
			At:         row.At,
		})
	}
	return runs, nil
}
