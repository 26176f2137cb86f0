package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bedbug-detector/internal/config"
	"bedbug-detector/internal/dto"
	"bedbug-detector/internal/logger"
	"bedbug-detector/internal/model"
	"bedbug-detector/internal/repository"
	"bedbug-detector/internal/service/ai"
	"bedbug-detector/internal/service/websocket"
)

// Sources recorded on live events.
const (
	SourceAPI      = "api"
	SourceCLI      = "cli"
	SourceTelegram = "telegram"
)

// ErrUnsupportedImage is returned for uploads that are not JPEG or PNG.
var ErrUnsupportedImage = errors.New("only JPG or PNG images allowed")

// Predictor is the decision procedure the manager drives.
type Predictor interface {
	Available() bool
	SmartPredict(ctx context.Context, img image.Image) (model.Result, error)
}

// Manager ties the decision procedure to the record store and the live feed.
type Manager struct {
	predictor  Predictor
	repo       repository.PredictionRepository
	hub        *websocket.HubService
	logger     *logger.Logger
	numWorkers int
}

// ImageProcessingTask is one file queued for batch classification.
type ImageProcessingTask struct {
	Index int
	Path  string
}

// BatchResult is the outcome for one file of a batch.
type BatchResult struct {
	Path   string
	Result model.Result
	ID     int64 // Zero unless the prediction was saved
	Err    error
}

// Outcome is the result of a single prediction request.
type Outcome struct {
	Result model.Result
	Record *model.Prediction // Nil unless saved
}

// NewManager creates a manager. hub may be nil when no live feed runs.
func NewManager(predictor Predictor, repo repository.PredictionRepository, hub *websocket.HubService, cfg *config.Config, logger *logger.Logger) *Manager {
	workers := cfg.ProcessingWorkers
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		predictor:  predictor,
		repo:       repo,
		hub:        hub,
		logger:     logger,
		numWorkers: workers,
	}
}

// ModelLoaded reports whether predictions can be made.
func (m *Manager) ModelLoaded() bool {
	return m.predictor != nil && m.predictor.Available()
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

// DecodeImage decodes JPEG or PNG bytes. Other formats are rejected even
// when a decoder happens to be registered.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ai.ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedImage, format)
	}
	return img, nil
}

// Predict decodes data, runs the decision procedure and, when save is set,
// stores the verdict under imageName.
func (m *Manager) Predict(ctx context.Context, data []byte, imageName string, save bool, source string) (*Outcome, error) {
	if !m.ModelLoaded() {
		return nil, ai.ErrModelUnavailable
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	res, err := m.predictor.SmartPredict(ctx, img)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Result: res}
	if !save {
		return out, nil
	}

	record := model.PredictionFromResult(res, imageNameOrDefault(imageName))
	if _, err := m.Save(ctx, record, source); err != nil {
		return nil, err
	}
	out.Record = record
	return out, nil
}

// Save stores a record and announces it on the live feed.
func (m *Manager) Save(ctx context.Context, p *model.Prediction, source string) (int64, error) {
	id, err := m.repo.Insert(ctx, p)
	if err != nil {
		return 0, err
	}

	m.logger.Info("Saved prediction %d: %s (%.3f) for %s", id, p.Label, p.Confidence, p.ImageName)

	if m.hub != nil {
		event := dto.LiveEvent{Type: "prediction_saved", Source: source, Prediction: dto.HistoryItem{Prediction: *p}}
		if err := m.hub.BroadcastJSON(event); err != nil {
			m.logger.Error("Error broadcasting prediction %d: %v", id, err)
		}
	}
	return id, nil
}

// History returns stored predictions newest first.
func (m *Manager) History(ctx context.Context, filter *model.HistoryFilter) ([]model.Prediction, error) {
	return m.repo.GetHistory(ctx, filter)
}

// Stats returns aggregate counts over stored predictions.
func (m *Manager) Stats(ctx context.Context) (*model.Stats, error) {
	return m.repo.GetStats(ctx)
}

// ProcessBatch classifies every file with a fixed pool of workers. Results
// are returned in the order of paths. A failure on one file does not stop
// the others, except ErrModelUnavailable which fails the whole batch.
func (m *Manager) ProcessBatch(ctx context.Context, paths []string, save bool) ([]BatchResult, error) {
	if !m.ModelLoaded() {
		return nil, ai.ErrModelUnavailable
	}

	results := make([]BatchResult, len(paths))
	processingQueue := make(chan ImageProcessingTask, len(paths))
	for i, p := range paths {
		processingQueue <- ImageProcessingTask{Index: i, Path: p}
	}
	close(processingQueue)

	workers := m.numWorkers
	if workers > len(paths) {
		workers = len(paths)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go m.processingWorker(ctx, i, processingQueue, save, results, &wg)
	}
	wg.Wait()

	m.logger.Info("Batch finished: %d file(s) with %d worker(s)", len(paths), workers)
	return results, nil
}

// processingWorker handles queued files until the queue is drained.
func (m *Manager) processingWorker(ctx context.Context, workerID int, queue <-chan ImageProcessingTask, save bool, results []BatchResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range queue {
		results[task.Index] = m.processFile(ctx, task, save)
		if err := results[task.Index].Err; err != nil {
			m.logger.Error("Worker %d: %s: %v", workerID, task.Path, err)
		}
	}
}

func (m *Manager) processFile(ctx context.Context, task ImageProcessingTask, save bool) BatchResult {
	r := BatchResult{Path: task.Path}
	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}

	data, err := os.ReadFile(task.Path)
	if err != nil {
		r.Err = fmt.Errorf("failed to read image: %w", err)
		return r
	}

	out, err := m.Predict(ctx, data, filepath.Base(task.Path), save, SourceCLI)
	if err != nil {
		r.Err = err
		return r
	}
	r.Result = out.Result
	if out.Record != nil {
		r.ID = out.Record.ID
	}
	return r
}

// ImageFiles lists the JPEG and PNG files directly inside dir, sorted by name.
func ImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func imageNameOrDefault(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload_" + uuid.NewString()
	}
	return name
}
