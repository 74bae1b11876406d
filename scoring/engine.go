// Package scoring converts raw result payloads into scores and winners
// according to per-game configuration. It owns no state: every call reads the
// game's configuration through the config repository and works purely on the
// payload it is given.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/repositories"
)

// ScoreResult is the outcome of applying a scoring rule to a payload.
type ScoreResult struct {
	TotalScore float64                `json:"total_score"`
	RuleType   models.ScoringRuleType `json:"rule_type"`
	Breakdown  map[string]float64     `json:"breakdown,omitempty"`
}

// ValidationResult collects schema validation failures. IsValid is true iff
// Errors is empty.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

type Engine interface {
	ScoreMatch(ctx context.Context, gameSlug string, payload models.ResultPayload) (*ScoreResult, error)
	// DetermineWinner prefers an explicit winner_team_id in the payload; with
	// none present it compares team_a_score against team_b_score. Equal
	// scores mean a draw and return nil.
	DetermineWinner(ctx context.Context, gameSlug string, payload models.ResultPayload) (*int, error)
	// ValidateResultSchema checks the payload against the game's configured
	// schema. A game with no schema accepts any payload; new games without a
	// curated schema must not block submissions.
	ValidateResultSchema(ctx context.Context, gameSlug string, payload models.ResultPayload) (*ValidationResult, error)
}

type engine struct {
	configRepo repositories.GameConfigRepository
}

func NewEngine(configRepo repositories.GameConfigRepository) Engine {
	return &engine{configRepo: configRepo}
}

func (e *engine) ScoreMatch(ctx context.Context, gameSlug string, payload models.ResultPayload) (*ScoreResult, error) {
	rule, err := e.configRepo.GetActiveScoringRule(ctx, gameSlug)
	if err != nil {
		return nil, fmt.Errorf("scoring game %q: %w", gameSlug, err)
	}

	switch cfg := rule.Config.(type) {
	case models.WinLossConfig:
		return scoreWinLoss(payload), nil
	case models.PointsAccumulationConfig:
		return scorePointsAccumulation(cfg, payload), nil
	case models.PlacementOrderConfig:
		return scorePlacementOrder(cfg, payload), nil
	case models.TimeBasedConfig:
		return scoreTimeBased(cfg, payload), nil
	default:
		return nil, fmt.Errorf("scoring game %q: %w: %T", gameSlug, repositories.ErrUnknownRuleType, rule.Config)
	}
}

func scoreWinLoss(payload models.ResultPayload) *ScoreResult {
	score := 0.0
	if isWin, _ := payload["is_win"].(bool); isWin {
		score = 1
	}
	return &ScoreResult{TotalScore: score, RuleType: models.RuleTypeWinLoss}
}

func scorePointsAccumulation(cfg models.PointsAccumulationConfig, payload models.ResultPayload) *ScoreResult {
	breakdown := make(map[string]float64, len(cfg.PointFields))
	total := 0.0
	for field, weight := range cfg.PointFields {
		value, ok := numericValue(payload[field])
		if !ok {
			// Missing or non-numeric fields contribute 0.
			breakdown[field] = 0
			continue
		}
		contribution := math.Round(value * weight)
		breakdown[field] = contribution
		total += contribution
	}
	return &ScoreResult{TotalScore: total, RuleType: models.RuleTypePointsAccumulation, Breakdown: breakdown}
}

func scorePlacementOrder(cfg models.PlacementOrderConfig, payload models.ResultPayload) *ScoreResult {
	result := &ScoreResult{RuleType: models.RuleTypePlacementOrder}
	// Placements must be whole numbers; fractional values score zero.
	idx, ok := intValue(payload["placement"])
	if !ok {
		return result
	}
	// Placements past the end of the points table score zero, not an error.
	if idx >= 1 && idx <= len(cfg.PlacementPoints) {
		result.TotalScore = float64(cfg.PlacementPoints[idx-1])
	}
	return result
}

func scoreTimeBased(cfg models.TimeBasedConfig, payload models.ResultPayload) *ScoreResult {
	field := cfg.CompletionTimeField
	if field == "" {
		field = "completion_time"
	}
	result := &ScoreResult{RuleType: models.RuleTypeTimeBased}
	if value, ok := numericValue(payload[field]); ok {
		result.TotalScore = value
	}
	return result
}

func (e *engine) DetermineWinner(ctx context.Context, gameSlug string, payload models.ResultPayload) (*int, error) {
	if winner, ok := intValue(payload["winner_team_id"]); ok {
		return &winner, nil
	}

	scoreA, _ := numericValue(payload["team_a_score"])
	scoreB, _ := numericValue(payload["team_b_score"])
	if scoreA == scoreB {
		return nil, nil // draw
	}

	var winnerKey string
	if scoreA > scoreB {
		winnerKey = "team_a_id"
	} else {
		winnerKey = "team_b_id"
	}
	winner, ok := intValue(payload[winnerKey])
	if !ok {
		return nil, nil
	}
	return &winner, nil
}

func (e *engine) ValidateResultSchema(ctx context.Context, gameSlug string, payload models.ResultPayload) (*ValidationResult, error) {
	fields, err := e.configRepo.GetResultSchema(ctx, gameSlug)
	if err != nil {
		return nil, fmt.Errorf("loading result schema for game %q: %w", gameSlug, err)
	}
	// Lenient default: a game without a curated schema accepts any payload.
	if len(fields) == 0 {
		return &ValidationResult{IsValid: true}, nil
	}

	var errs []string
	for _, field := range fields {
		value, present := payload[field.FieldName]
		if !present || value == nil {
			if field.Required {
				errs = append(errs, fmt.Sprintf("field %q is required", field.FieldName))
			}
			continue
		}
		errs = append(errs, validateFieldValue(field, value)...)
	}

	return &ValidationResult{IsValid: len(errs) == 0, Errors: errs}, nil
}

func validateFieldValue(field *models.ResultSchemaField, value interface{}) []string {
	var errs []string
	switch field.FieldType {
	case models.SchemaFieldInteger:
		n, ok := intValue(value)
		if !ok {
			return []string{fmt.Sprintf("field %q must be an integer", field.FieldName)}
		}
		errs = append(errs, checkRange(field, float64(n))...)
	case models.SchemaFieldDecimal:
		n, ok := numericValue(value)
		if !ok {
			return []string{fmt.Sprintf("field %q must be a number", field.FieldName)}
		}
		errs = append(errs, checkRange(field, n)...)
	case models.SchemaFieldBoolean:
		if _, ok := value.(bool); !ok {
			errs = append(errs, fmt.Sprintf("field %q must be a boolean", field.FieldName))
		}
	case models.SchemaFieldString:
		if _, ok := value.(string); !ok {
			errs = append(errs, fmt.Sprintf("field %q must be a string", field.FieldName))
		}
	case models.SchemaFieldEnum:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("field %q must be one of %v", field.FieldName, field.Choices)}
		}
		found := false
		for _, choice := range field.Choices {
			if s == choice {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("field %q must be one of %v, got %q", field.FieldName, field.Choices, s))
		}
	}
	return errs
}

func checkRange(field *models.ResultSchemaField, value float64) []string {
	var errs []string
	if field.Min != nil && value < *field.Min {
		errs = append(errs, fmt.Sprintf("field %q must be >= %v", field.FieldName, *field.Min))
	}
	if field.Max != nil && value > *field.Max {
		errs = append(errs, fmt.Sprintf("field %q must be <= %v", field.FieldName, *field.Max))
	}
	return errs
}

// numericValue coerces json-decoded payload values to float64.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// intValue coerces payload values that represent whole numbers; a float with
// a fractional part is not an integer.
func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}
