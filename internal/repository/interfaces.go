package repository

import (
	"context"

	"bedbug-detector/internal/model"
)

// PredictionRepository defines the interface for prediction record operations.
type PredictionRepository interface {
	// Create operations
	Insert(ctx context.Context, p *model.Prediction) (int64, error)

	// Read operations
	GetByID(ctx context.Context, id int64) (*model.Prediction, error)
	GetHistory(ctx context.Context, filter *model.HistoryFilter) ([]model.Prediction, error)
	GetStats(ctx context.Context) (*model.Stats, error)

	// Delete operations
	Delete(ctx context.Context, id int64) error
}
