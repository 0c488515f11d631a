package domain

import (
	"time"

	"gorm.io/datatypes"
)

// CREATE TABLE public.calculation_history (
//     id               TEXT PRIMARY KEY,
//     user_id          TEXT NOT NULL DEFAULT '',
//     calculator_type  TEXT NOT NULL,
//     inputs           JSONB,
//     outputs          JSONB,
//     execution_time   BIGINT,
//     created_at       TIMESTAMPTZ DEFAULT NOW()
// );

type HistoryRecord struct {
	ID             string            `gorm:"primaryKey;column:id" json:"id"`
	UserID         string            `gorm:"column:user_id;index" json:"user_id"`
	CalculatorType string            `gorm:"column:calculator_type;index;not null" json:"calculator_type"`
	Inputs         datatypes.JSONMap `gorm:"column:inputs" json:"inputs"`
	Outputs        datatypes.JSONMap `gorm:"column:outputs" json:"outputs"`
	ExecutionTime  int64             `gorm:"column:execution_time" json:"execution_time"` // ms
	Timestamp      time.Time         `gorm:"column:created_at" json:"timestamp"`
}

func (HistoryRecord) TableName() string {
	return "calculation_history"
}

// Succeeded reports whether the calculation produced outputs without a recorded error.
func (r HistoryRecord) Succeeded() bool {
	if len(r.Outputs) == 0 {
		return false
	}
	if e, ok := r.Outputs["error"]; ok && e != nil && e != "" {
		return false
	}
	return true
}

type HistoryQuery struct {
	UserID         string
	CalculatorType string
	Limit          int
	Offset         int
}

type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type HistoryPage struct {
	Records    []HistoryRecord `json:"records"`
	Total      int64           `json:"total"`
	Pagination Pagination      `json:"pagination"`
}

const (
	PatternParameterPreference = "parameter-preference"
	PatternCalculatorSequence  = "calculator-sequence"
	PatternMaterialPreference  = "material-preference"
)

type Pattern struct {
	ID             string            `gorm:"primaryKey;column:id" json:"id"`
	UserID         string            `gorm:"column:user_id;index" json:"user_id"`
	Type           string            `gorm:"column:pattern_type" json:"type"`
	CalculatorType string            `gorm:"column:calculator_type" json:"calculator_type"`
	Parameters     datatypes.JSONMap `gorm:"column:parameters" json:"parameters"`
	Frequency      int               `gorm:"column:frequency" json:"frequency"`
	Confidence     float64           `gorm:"column:confidence" json:"confidence"`
	LastSeen       time.Time         `gorm:"column:last_seen" json:"last_seen"`
}

func (Pattern) TableName() string {
	return "usage_patterns"
}

type Preset struct {
	ID             string            `gorm:"primaryKey;column:id" json:"id"`
	UserID         string            `gorm:"column:user_id;index" json:"user_id"`
	Name           string            `gorm:"column:name;not null" json:"name"`
	CalculatorType string            `gorm:"column:calculator_type;index" json:"calculator_type"`
	Parameters     datatypes.JSONMap `gorm:"column:parameters" json:"parameters"`
	UsageCount     int               `gorm:"column:usage_count;default:0" json:"usage_count"`
	IsFavorite     bool              `gorm:"column:is_favorite;default:false" json:"is_favorite"`
	UpdatedAt      time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (Preset) TableName() string {
	return "calculator_presets"
}

type PresetQuery struct {
	UserID         string
	CalculatorType string
	Limit          int
	Offset         int
}

type PresetPage struct {
	Presets []Preset `json:"presets"`
	Total   int64    `json:"total"`
	HasMore bool     `json:"has_more"`
}

type Preferences struct {
	UserID             string                      `gorm:"primaryKey;column:user_id" json:"user_id"`
	PreferredMaterials datatypes.JSONSlice[string] `gorm:"column:preferred_materials" json:"preferred_materials"`
	DisabledTypes      datatypes.JSONSlice[string] `gorm:"column:disabled_types" json:"disabled_types"`
	MaxRecommendations int                         `gorm:"column:max_recommendations;default:0" json:"max_recommendations"`
	UpdatedAt          time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (Preferences) TableName() string {
	return "user_preferences"
}
