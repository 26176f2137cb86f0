package cli

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedbug-detector/internal/model"
	"bedbug-detector/internal/repository/sqlite"
	"bedbug-detector/internal/service/ai"
)

// setupEnv points the configuration at temp paths and a missing model.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MODEL_PATH", filepath.Join(dir, "missing.onnx"))
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("DB_DRIVER", sqlite.DriverPureGo)
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "env.db"))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seed(t *testing.T, dbPath string, labels ...model.Label) {
	t.Helper()
	db, err := sqlite.Open(sqlite.DriverPureGo, dbPath)
	require.NoError(t, err)
	defer db.Close()

	repo := sqlite.NewPredictionRepository(db)
	for _, l := range labels {
		_, err := repo.Insert(context.Background(), &model.Prediction{Label: l, Confidence: 0.8, ImageName: string(l) + ".jpg"})
		require.NoError(t, err)
	}
}

func TestStats_EmptyDatabase(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "stats", "--db", filepath.Join(dir, "flag.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "Total predictions:   0")

	_, err = os.Stat(filepath.Join(dir, "flag.db"))
	assert.NoError(t, err, "--db overrides DATABASE_PATH")
}

func TestHistory_FilterByLabel(t *testing.T) {
	dir := setupEnv(t)
	dbPath := filepath.Join(dir, "seeded.db")
	seed(t, dbPath, model.LabelCimex, model.LabelNonCimex, model.LabelCimex)

	out, err := run(t, "history", "--db", dbPath, "--label", "Cimex")
	require.NoError(t, err)
	assert.Contains(t, out, "Cimex.jpg")
	assert.NotContains(t, out, "Non-Cimex.jpg")

	out, err = run(t, "stats", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cimex detected:      2")
	assert.Contains(t, out, "Non-Cimex:           1")
}

func TestHistory_InvalidLabel(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "history", "--label", "bedbug")
	assert.ErrorIs(t, err, model.ErrInvalidLabel)
}

func TestHistory_Empty(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No predictions found.")
}

func TestPredict_ModelUnavailable(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "bug.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())

	_, err = run(t, "predict", path)
	assert.ErrorIs(t, err, ai.ErrModelUnavailable)
}

func TestPredict_RequiresFile(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "predict")
	assert.Error(t, err)
}

func TestBatch_EmptyDirectory(t *testing.T) {
	dir := setupEnv(t)
	images := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(images, 0755))

	out, err := run(t, "batch", images, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "No images found.")
}

func TestBatch_MissingDirectory(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, "batch", filepath.Join(dir, "nope"))
	assert.Error(t, err)
}
