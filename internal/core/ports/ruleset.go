package ports

import (
	"context"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
)

type RuleSetRepository interface {
	Upsert(ctx context.Context, set domain.RuleSet) (domain.RuleSet, error)
	Get(ctx context.Context, name string) (domain.RuleSet, error)
	Delete(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, filter domain.RuleSetFilter) ([]domain.RuleSet, error)
}
