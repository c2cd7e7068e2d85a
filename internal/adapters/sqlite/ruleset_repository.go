package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/ruleapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ruleSetModel struct {
	Name           string    `gorm:"column:name;primaryKey"`
	DefinitionJSON string    `gorm:"column:definition_json;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (ruleSetModel) TableName() string {
	return "rule_sets"
}

type RuleSetRepository struct {
	db *gormsqlite.DB
}

func NewRuleSetRepository(db *gormsqlite.DB) *RuleSetRepository {
	return &RuleSetRepository{db: db}
}

func (r *RuleSetRepository) Upsert(ctx context.Context, set domain.RuleSet) (domain.RuleSet, error) {
	now := time.Now().UTC()
	model := ruleSetModel{
		Name:           set.Name,
		DefinitionJSON: string(set.Definition),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var out domain.RuleSet
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"definition_json", "updated_at"}),
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("upsert rule set: %w", err)
		}

		var saved ruleSetModel
		if err := tx.Where("name = ?", set.Name).First(&saved).Error; err != nil {
			return fmt.Errorf("load upserted rule set: %w", err)
		}
		out = toRuleSetDomain(saved)
		return nil
	})
	if err != nil {
		return domain.RuleSet{}, err
	}
	return out, nil
}

func (r *RuleSetRepository) Get(ctx context.Context, name string) (domain.RuleSet, error) {
	var model ruleSetModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("name = ?", name).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RuleSet{}, domain.ErrNotFound
		}
		return domain.RuleSet{}, fmt.Errorf("get rule set: %w", err)
	}
	return toRuleSetDomain(model), nil
}

func (r *RuleSetRepository) Delete(ctx context.Context, name string) (bool, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("name = ?", name).Delete(&ruleSetModel{})
		if res.Error != nil {
			return fmt.Errorf("delete rule set: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *RuleSetRepository) List(ctx context.Context, filter domain.RuleSetFilter) ([]domain.RuleSet, error) {
	var models []ruleSetModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&ruleSetModel{})
		if filter.Prefix != "" {
			query = query.Where("name >= ? AND name < ?", filter.Prefix, filter.Prefix+"\uffff")
		}
		if filter.AfterName != "" {
			query = query.Where("name > ?", filter.AfterName)
		}
		return query.Order("name ASC").Limit(filter.Limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}

	sets := make([]domain.RuleSet, 0, len(models))
	for _, model := range models {
		sets = append(sets, toRuleSetDomain(model))
	}
	return sets, nil
}

func toRuleSetDomain(model ruleSetModel) domain.RuleSet {
	return domain.RuleSet{
		Name:       model.Name,
		Definition: json.RawMessage(model.DefinitionJSON),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}
