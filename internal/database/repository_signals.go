package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CreateSignal persists one pipeline result.
func (db *DB) CreateSignal(ctx context.Context, record *SignalRecord) error {
	query := `
		INSERT INTO signals (
			id, symbol, direction, pattern, confidence, weighted_score, grade,
			status, rejection_stage, reasons, entry_price, stop_price, shares,
			risk_dollars, plan, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	reasons, err := json.Marshal(record.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}
	var plan any
	if len(record.Plan) > 0 {
		plan = record.Plan
	}

	now := time.Now()
	_, err = db.Pool.Exec(ctx, query,
		record.ID,
		record.Symbol,
		record.Direction,
		record.Pattern,
		record.Confidence,
		record.WeightedScore,
		record.Grade,
		record.Status,
		record.RejectionStage,
		reasons,
		record.EntryPrice,
		record.StopPrice,
		record.Shares,
		record.RiskDollars,
		plan,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}

	record.CreatedAt = now
	record.UpdatedAt = now
	return nil
}

// GetSignal fetches one signal by id.
func (db *DB) GetSignal(ctx context.Context, id string) (*SignalRecord, error) {
	query := `
		SELECT id, symbol, direction, pattern, confidence, weighted_score, grade,
		       status, rejection_stage, reasons, entry_price, stop_price, shares,
		       risk_dollars, plan, created_at, updated_at
		FROM signals WHERE id = $1`

	record := &SignalRecord{}
	var reasons []byte
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.Symbol, &record.Direction, &record.Pattern,
		&record.Confidence, &record.WeightedScore, &record.Grade,
		&record.Status, &record.RejectionStage, &reasons,
		&record.EntryPrice, &record.StopPrice, &record.Shares,
		&record.RiskDollars, &record.Plan, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get signal %s: %w", id, err)
	}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &record.Reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons for signal %s: %w", id, err)
		}
	}
	return record, nil
}

// GetRecentSignals returns the newest signals first, optionally filtered
// by symbol. limit defaults to 50 when zero or negative.
func (db *DB) GetRecentSignals(ctx context.Context, symbol string, limit int) ([]*SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, direction, pattern, confidence, weighted_score, grade,
		       status, rejection_stage, reasons, entry_price, stop_price, shares,
		       risk_dollars, plan, created_at, updated_at
		FROM signals`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = $1`
		args = append(args, symbol)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []*SignalRecord
	for rows.Next() {
		record := &SignalRecord{}
		var reasons []byte
		if err := rows.Scan(
			&record.ID, &record.Symbol, &record.Direction, &record.Pattern,
			&record.Confidence, &record.WeightedScore, &record.Grade,
			&record.Status, &record.RejectionStage, &reasons,
			&record.EntryPrice, &record.StopPrice, &record.Shares,
			&record.RiskDollars, &record.Plan, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &record.Reasons); err != nil {
				return nil, fmt.Errorf("failed to decode reasons: %w", err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateSignalStatus moves a signal to a new lifecycle status.
func (db *DB) UpdateSignalStatus(ctx context.Context, id, status string) error {
	query := `UPDATE signals SET status = $2, updated_at = $3 WHERE id = $1`
	tag, err := db.Pool.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update signal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("signal %s not found", id)
	}
	return nil
}
