package models

import "time"

type ScoringRuleType string

const (
	RuleTypeWinLoss            ScoringRuleType = "win_loss"
	RuleTypePointsAccumulation ScoringRuleType = "points_accumulation"
	RuleTypePlacementOrder     ScoringRuleType = "placement_order"
	RuleTypeTimeBased          ScoringRuleType = "time_based"
)

// RuleConfig is the typed configuration of a scoring rule. Exactly one
// variant exists per rule type; the scoring engine switches over them
// exhaustively.
type RuleConfig interface {
	RuleType() ScoringRuleType
}

// WinLossConfig scores 1 for a win and 0 otherwise. It carries no knobs.
type WinLossConfig struct{}

func (WinLossConfig) RuleType() ScoringRuleType { return RuleTypeWinLoss }

// PointsAccumulationConfig maps payload fields to weights; the score is the
// weighted sum, with each per-field contribution rounded to the nearest
// integer value.
type PointsAccumulationConfig struct {
	PointFields map[string]float64 `json:"point_fields"`
}

func (PointsAccumulationConfig) RuleType() ScoringRuleType { return RuleTypePointsAccumulation }

// PlacementOrderConfig awards PlacementPoints[placement-1]; placements past
// the end of the table score zero.
type PlacementOrderConfig struct {
	PlacementPoints []int `json:"placement_points"`
}

func (PlacementOrderConfig) RuleType() ScoringRuleType { return RuleTypePlacementOrder }

// TimeBasedConfig passes the completion time through as the score.
type TimeBasedConfig struct {
	CompletionTimeField string `json:"completion_time_field,omitempty"`
}

func (TimeBasedConfig) RuleType() ScoringRuleType { return RuleTypeTimeBased }

type GameScoringRule struct {
	ID        int             `json:"id"`
	GameSlug  string          `json:"game_slug"`
	RuleType  ScoringRuleType `json:"rule_type"`
	Priority  int             `json:"priority"`
	IsActive  bool            `json:"is_active"`
	Config    RuleConfig      `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
}

type SchemaFieldType string

const (
	SchemaFieldInteger SchemaFieldType = "integer"
	SchemaFieldDecimal SchemaFieldType = "decimal"
	SchemaFieldString  SchemaFieldType = "string"
	SchemaFieldBoolean SchemaFieldType = "boolean"
	SchemaFieldEnum    SchemaFieldType = "enum"
)

// ResultSchemaField describes one field of a game's expected result payload.
// A game with no schema fields accepts any payload.
type ResultSchemaField struct {
	ID        int             `json:"id"`
	GameSlug  string          `json:"game_slug"`
	FieldName string          `json:"field_name"`
	FieldType SchemaFieldType `json:"field_type"`
	Required  bool            `json:"required"`
	Min       *float64        `json:"min,omitempty"`
	Max       *float64        `json:"max,omitempty"`
	Choices   []string        `json:"choices,omitempty"`
}
