package database

import "time"

// SignalRecord is one pipeline run persisted for audit and review.
// Planned signals carry the serialized execution plan; rejected ones
// carry the stage and reasons instead.
type SignalRecord struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"`
	Pattern        string    `json:"pattern,omitempty"`
	Confidence     float64   `json:"confidence"`
	WeightedScore  float64   `json:"weighted_score"`
	Grade          string    `json:"grade,omitempty"`
	Status         string    `json:"status"`
	RejectionStage string    `json:"rejection_stage,omitempty"`
	Reasons        []string  `json:"reasons,omitempty"`
	EntryPrice     float64   `json:"entry_price,omitempty"`
	StopPrice      float64   `json:"stop_price,omitempty"`
	Shares         int       `json:"shares,omitempty"`
	RiskDollars    float64   `json:"risk_dollars,omitempty"`
	Plan           []byte    `json:"plan,omitempty"` // serialized execution plan
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
