package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedbug-detector/internal/model"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(DriverPureGo, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func prob(v float64) *float64 {
	return &v
}

// fixedClock returns successive timestamps one second apart.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// ========================================
// Database Tests
// ========================================

func TestOpen_CreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "data", "predictions.db")

	db, err := Open(DriverPureGo, dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)

	var mode string
	require.NoError(t, db.Conn().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := Open(DriverPureGo, dbPath)
	require.NoError(t, err)
	_, err = NewPredictionRepository(first).Insert(context.Background(),
		&model.Prediction{Label: model.LabelCimex, Confidence: 0.9, ImageName: "a.jpg"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(DriverPureGo, dbPath)
	require.NoError(t, err)
	defer second.Close()

	stats, err := NewPredictionRepository(second).GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

// ========================================
// Prediction Repository Tests
// ========================================

func TestPredictionRepository_InsertAndGet(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))
	ctx := context.Background()

	p := &model.Prediction{
		Label:       model.LabelCimex,
		Confidence:  0.725,
		Probability: prob(0.275),
		ImageName:   "mattress.jpg",
	}

	id, err := repo.Insert(ctx, p)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.LabelCimex, got.Label)
	assert.Equal(t, 0.725, got.Confidence)
	require.NotNil(t, got.Probability)
	assert.Equal(t, 0.275, *got.Probability)
	assert.Equal(t, "mattress.jpg", got.ImageName)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
}

func TestPredictionRepository_NullProbability(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.Insert(ctx, &model.Prediction{Label: model.LabelUncertain, Confidence: 0.1, ImageName: "x.png"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Probability)
}

func TestPredictionRepository_RejectsInvalidLabel(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))

	_, err := repo.Insert(context.Background(), &model.Prediction{Label: "bedbug", Confidence: 0.9, ImageName: "x.jpg"})
	assert.ErrorIs(t, err, model.ErrInvalidLabel)
}

func TestPredictionRepository_GetByID_NotFound(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))

	got, err := repo.GetByID(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPredictionRepository_HistoryNewestFirst(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))
	repo.now = fixedClock(time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC))
	ctx := context.Background()

	labels := []model.Label{model.LabelCimex, model.LabelNonCimex, model.LabelUncertain, model.LabelCimex, model.LabelNonCimex}
	for i, l := range labels {
		_, err := repo.Insert(ctx, &model.Prediction{Label: l, Confidence: 0.8, ImageName: fmt.Sprintf("img_%d.jpg", i)})
		require.NoError(t, err)
	}

	all, err := repo.GetHistory(ctx, &model.HistoryFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "img_4.jpg", all[0].ImageName)
	assert.Equal(t, "img_0.jpg", all[4].ImageName)

	limited, err := repo.GetHistory(ctx, &model.HistoryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "img_3.jpg", limited[1].ImageName)

	paged, err := repo.GetHistory(ctx, &model.HistoryFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, "img_2.jpg", paged[0].ImageName)

	cimex, err := repo.GetHistory(ctx, &model.HistoryFilter{Label: model.LabelCimex, Limit: 100})
	require.NoError(t, err)
	require.Len(t, cimex, 2)
	for _, p := range cimex {
		assert.Equal(t, model.LabelCimex, p.Label)
	}
}

func TestPredictionRepository_HistoryEmpty(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))

	got, err := repo.GetHistory(context.Background(), &model.HistoryFilter{Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPredictionRepository_Stats(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))
	ctx := context.Background()

	empty, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, *empty)

	records := []model.Prediction{
		{Label: model.LabelCimex, Confidence: 0.9},
		{Label: model.LabelCimex, Confidence: 0.7},
		{Label: model.LabelNonCimex, Confidence: 0.8},
		{Label: model.LabelUncertain, Confidence: 0.2},
	}
	for i := range records {
		records[i].ImageName = "x.jpg"
		_, err := repo.Insert(ctx, &records[i])
		require.NoError(t, err)
	}

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Cimex)
	assert.Equal(t, 1, stats.NonCimex)
	assert.Equal(t, 1, stats.Uncertain)
	assert.InDelta(t, 0.65, stats.AverageConfidence, 1e-9)
}

func TestPredictionRepository_Delete(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.Insert(ctx, &model.Prediction{Label: model.LabelCimex, Confidence: 0.9, ImageName: "x.jpg"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPredictionRepository_ConcurrentInserts(t *testing.T) {
	repo := NewPredictionRepository(setupTestDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := repo.Insert(ctx, &model.Prediction{
				Label:      model.LabelNonCimex,
				Confidence: 0.9,
				ImageName:  fmt.Sprintf("concurrent_%d.jpg", idx),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 10, stats.NonCimex)
}
