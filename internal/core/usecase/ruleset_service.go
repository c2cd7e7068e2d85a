package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/ports"
	"github.com/atvirokodosprendimai/ruleapi/rule"
)

// RuleSetService manages named rule definitions and caches their built rules.
type RuleSetService struct {
	repo  ports.RuleSetRepository
	cache sync.Map // key: name → rule.Rule

	// gens counts writes per name. A loaded rule is cached only if no write
	// happened for its name while it was being loaded.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewRuleSetService(repo ports.RuleSetRepository) *RuleSetService {
	return &RuleSetService{repo: repo, gens: make(map[string]uint64)}
}

func (s *RuleSetService) Upsert(ctx context.Context, name string, definition json.RawMessage) (domain.RuleSet, error) {
	if err := domain.ValidateName(name); err != nil {
		return domain.RuleSet{}, err
	}
	if !json.Valid(definition) {
		return domain.RuleSet{}, fmt.Errorf("%w: definition must be valid json", domain.ErrInvalidDefinition)
	}
	def, _, err := domain.ParseDefinition(definition)
	if err != nil {
		return domain.RuleSet{}, err
	}
	// Store the canonical encoding so reads return a stable document.
	canonical, err := json.Marshal(def)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("encode definition: %w", err)
	}
	set, err := s.repo.Upsert(ctx, domain.RuleSet{
		Name:       name,
		Definition: canonical,
	})
	s.invalidate(name)
	return set, err
}

func (s *RuleSetService) Get(ctx context.Context, name string) (domain.RuleSet, error) {
	if err := domain.ValidateName(name); err != nil {
		return domain.RuleSet{}, err
	}
	return s.repo.Get(ctx, name)
}

func (s *RuleSetService) Delete(ctx context.Context, name string) (bool, error) {
	if err := domain.ValidateName(name); err != nil {
		return false, err
	}
	deleted, err := s.repo.Delete(ctx, name)
	s.invalidate(name)
	return deleted, err
}

func (s *RuleSetService) List(ctx context.Context, filter domain.RuleSetFilter) ([]domain.RuleSet, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}

// Rule returns the built rule for name, loading it on first use.
func (s *RuleSetService) Rule(ctx context.Context, name string) (rule.Rule, error) {
	if err := domain.ValidateName(name); err != nil {
		return rule.Rule{}, err
	}
	if cached, ok := s.cache.Load(name); ok {
		return cached.(rule.Rule), nil
	}
	gen := s.generation(name)

	set, err := s.repo.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return rule.Rule{}, err
		}
		return rule.Rule{}, fmt.Errorf("load rule set: %w", err)
	}
	_, built, err := domain.ParseDefinition(set.Definition)
	if err != nil {
		return rule.Rule{}, err
	}
	s.mu.Lock()
	if s.gens[name] == gen {
		s.cache.Store(name, built)
	}
	s.mu.Unlock()
	return built, nil
}

func (s *RuleSetService) generation(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[name]
}

// invalidate runs after every repository write, successful or not.
func (s *RuleSetService) invalidate(name string) {
	s.mu.Lock()
	s.gens[name]++
	s.cache.Delete(name)
	s.mu.Unlock()
}

// Schema returns the JSON Schema document evaluated for name.
func (s *RuleSetService) Schema(ctx context.Context, name string) (json.RawMessage, error) {
	r, err := s.Rule(ctx, name)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return doc, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
