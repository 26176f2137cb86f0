package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bedbug-detector/internal/model"
)

// timeLayout is fixed width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db  *DB
	now func() time.Time
}

// NewPredictionRepository creates a new SQLite prediction repository.
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db, now: time.Now}
}

// Insert adds a new prediction record. CreatedAt is set when zero.
func (r *PredictionRepository) Insert(ctx context.Context, p *model.Prediction) (int64, error) {
	if !p.Label.Valid() {
		return 0, fmt.Errorf("failed to insert prediction: %w", model.ErrInvalidLabel)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	p.CreatedAt = p.CreatedAt.UTC()

	r.db.Lock()
	defer r.db.Unlock()

	var probability sql.NullFloat64
	if p.Probability != nil {
		probability = sql.NullFloat64{Float64: *p.Probability, Valid: true}
	}

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO predictions (label, confidence, probability, image_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(p.Label), p.Confidence, probability, p.ImageName, p.CreatedAt.Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

// GetByID retrieves a prediction by its ID. It returns nil when absent.
func (r *PredictionRepository) GetByID(ctx context.Context, id int64) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, label, confidence, probability, image_name, created_at
		FROM predictions WHERE id = ?
	`, id)

	p, err := scanPrediction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetHistory returns predictions newest first.
func (r *PredictionRepository) GetHistory(ctx context.Context, filter *model.HistoryFilter) ([]model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, label, confidence, probability, image_name, created_at
		FROM predictions
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Label != "" {
		query += " AND label = ?"
		args = append(args, string(filter.Label))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	predictions := []model.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}

	return predictions, rows.Err()
}

// GetStats returns per-label counts and the average confidence.
func (r *PredictionRepository) GetStats(ctx context.Context) (*model.Stats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.Stats{}

	if err := r.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM predictions`,
	).Scan(&stats.Total, &stats.AverageConfidence); err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT label, COUNT(*) FROM predictions GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to count labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		switch model.Label(label) {
		case model.LabelCimex:
			stats.Cimex = count
		case model.LabelNonCimex:
			stats.NonCimex = count
		case model.LabelUncertain:
			stats.Uncertain = count
		}
	}

	return stats, rows.Err()
}

// Delete removes a prediction by its ID.
func (r *PredictionRepository) Delete(ctx context.Context, id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM predictions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(s scanner) (*model.Prediction, error) {
	var (
		p           model.Prediction
		label       string
		probability sql.NullFloat64
		createdAt   string
	)
	if err := s.Scan(&p.ID, &label, &p.Confidence, &probability, &p.ImageName, &createdAt); err != nil {
		return nil, err
	}

	p.Label = model.Label(label)
	if probability.Valid {
		v := probability.Float64
		p.Probability = &v
	}

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	p.CreatedAt = ts
	return &p, nil
}
