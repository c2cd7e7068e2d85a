package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
)

// LogPublisher writes outbox events to the structured log. It is the default
// sink when no webhook is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.logger.Info("outbox publish",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("rule_set", event.RuleSet),
		zap.String("run_id", event.RunID),
		zap.String("actor", event.Actor),
		zap.Int("schema_version", event.SchemaVersion),
	)
	return nil
}
