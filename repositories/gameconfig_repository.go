package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-results/models"
)

var (
	// ErrScoringRuleNotFound means the game has no active scoring rule at
	// all; scoring cannot proceed without configuration.
	ErrScoringRuleNotFound = errors.New("no active scoring rule for game")
	ErrUnknownRuleType     = errors.New("unknown scoring rule type")
)

type GameConfigRepository interface {
	// GetActiveScoringRule returns the highest-priority active rule for the
	// game, its JSON config already decoded into the typed variant.
	GetActiveScoringRule(ctx context.Context, gameSlug string) (*models.GameScoringRule, error)
	// GetResultSchema returns the configured schema fields for the game. An
	// empty slice means no schema is configured.
	GetResultSchema(ctx context.Context, gameSlug string) ([]*models.ResultSchemaField, error)
}

type postgresGameConfigRepository struct {
	db *sql.DB
}

func NewPostgresGameConfigRepository(db *sql.DB) GameConfigRepository {
	return &postgresGameConfigRepository{db: db}
}

func (r *postgresGameConfigRepository) GetActiveScoringRule(ctx context.Context, gameSlug string) (*models.GameScoringRule, error) {
	query := `
		SELECT id, game_slug, rule_type, priority, is_active, config, created_at
		FROM game_scoring_rules
		WHERE game_slug = $1 AND is_active = TRUE
		ORDER BY priority DESC, id ASC
		LIMIT 1`

	rule := &models.GameScoringRule{}
	var rawConfig []byte
	err := r.db.QueryRowContext(ctx, query, gameSlug).Scan(
		&rule.ID,
		&rule.GameSlug,
		&rule.RuleType,
		&rule.Priority,
		&rule.IsActive,
		&rawConfig,
		&rule.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoringRuleNotFound
		}
		return nil, fmt.Errorf("failed to scan scoring rule for game %q: %w", gameSlug, err)
	}

	config, err := decodeRuleConfig(rule.RuleType, rawConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid config for scoring rule %d: %w", rule.ID, err)
	}
	rule.Config = config
	return rule, nil
}

func (r *postgresGameConfigRepository) GetResultSchema(ctx context.Context, gameSlug string) ([]*models.ResultSchemaField, error) {
	query := `
		SELECT id, game_slug, field_name, field_type, required, min_value, max_value, choices
		FROM game_result_schema_fields
		WHERE game_slug = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, gameSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema fields for game %q: %w", gameSlug, err)
	}
	defer rows.Close()

	var fields []*models.ResultSchemaField
	for rows.Next() {
		field := &models.ResultSchemaField{}
		var rawChoices []byte
		if err := rows.Scan(
			&field.ID,
			&field.GameSlug,
			&field.FieldName,
			&field.FieldType,
			&field.Required,
			&field.Min,
			&field.Max,
			&rawChoices,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schema field: %w", err)
		}
		if len(rawChoices) > 0 {
			if err := json.Unmarshal(rawChoices, &field.Choices); err != nil {
				return nil, fmt.Errorf("invalid choices for schema field %d: %w", field.ID, err)
			}
		}
		fields = append(fields, field)
	}
	return fields, rows.Err()
}

func decodeRuleConfig(ruleType models.ScoringRuleType, raw []byte) (models.RuleConfig, error) {
	switch ruleType {
	case models.RuleTypeWinLoss:
		return models.WinLossConfig{}, nil
	case models.RuleTypePointsAccumulation:
		var cfg models.PointsAccumulationConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case models.RuleTypePlacementOrder:
		var cfg models.PlacementOrderConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case models.RuleTypeTimeBased:
		var cfg models.TimeBasedConfig
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, err
			}
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, ruleType)
	}
}
