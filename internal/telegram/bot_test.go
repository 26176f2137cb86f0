package telegram

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedbug-detector/internal/config"
	"bedbug-detector/internal/logger"
	"bedbug-detector/internal/model"
	"bedbug-detector/internal/repository/sqlite"
	"bedbug-detector/internal/service"
	"bedbug-detector/internal/service/ai"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFile(cfg tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{FileID: cfg.FileID, FilePath: "photos/" + cfg.FileID + ".jpg"}, nil
}

func (f *fakeAPI) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fixedClassifier struct {
	prob      float64
	available bool
}

func (c fixedClassifier) Available() bool { return c.available }

func (c fixedClassifier) Classify(ctx context.Context, img image.Image) (float64, error) {
	return c.prob, nil
}

func setupBot(t *testing.T, classifier fixedClassifier) (*Bot, *fakeAPI, *sqlite.PredictionRepository) {
	t.Helper()

	db, err := sqlite.Open(sqlite.DriverPureGo, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	predictor, err := ai.NewPredictor(classifier)
	require.NoError(t, err)

	var photo bytes.Buffer
	require.NoError(t, jpeg.Encode(&photo, image.NewRGBA(image.Rect(0, 0, 16, 16)), nil))
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(photo.Bytes())
	}))
	t.Cleanup(files.Close)

	repo := sqlite.NewPredictionRepository(db)
	manager := service.NewManager(predictor, repo, nil, &config.Config{ProcessingWorkers: 1}, logger.Discard())
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 4)}

	return &Bot{
		api:     api,
		manager: manager,
		logger:  logger.Discard(),
		client:  files.Client(),
		fileURL: func(f tgbotapi.File) string { return files.URL + "/" + f.FilePath },
	}, api, repo
}

func command(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 42},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func TestFormatVerdict(t *testing.T) {
	cimex := FormatVerdict(model.Result{Label: model.LabelCimex, Confidence: 0.725, Views: 4})
	assert.Contains(t, cimex, "Bedbug")
	assert.Contains(t, cimex, "72.5%")
	assert.Contains(t, cimex, "4 orientations")

	non := FormatVerdict(model.Result{Label: model.LabelNonCimex, Confidence: 0.9, Views: 1})
	assert.Contains(t, non, "Not a bedbug")
	assert.NotContains(t, non, "orientations")

	unsure := FormatVerdict(model.Result{Label: model.LabelUncertain, Confidence: 0, Views: 4})
	assert.Contains(t, unsure, "Uncertain")
	assert.Contains(t, unsure, "0.0%")
}

func TestBot_Commands(t *testing.T) {
	bot, api, _ := setupBot(t, fixedClassifier{prob: 0.9, available: true})
	ctx := context.Background()

	bot.handleMessage(ctx, command("/start"))
	bot.handleMessage(ctx, command("/help"))
	bot.handleMessage(ctx, command("/check"))
	bot.handleMessage(ctx, &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "hello"})

	assert.Equal(t, []string{msgStart, msgHelp, msgUnknownCommand, msgSendPhoto}, api.messages())
}

func TestBot_PhotoIsClassifiedAndSaved(t *testing.T) {
	bot, api, repo := setupBot(t, fixedClassifier{prob: 0.1, available: true})
	ctx := context.Background()

	bot.handleMessage(ctx, &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 1280},
		},
	})

	msgs := api.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, msgProcessing, msgs[0])
	assert.Contains(t, msgs[1], "Bedbug")

	history, err := repo.GetHistory(ctx, &model.HistoryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "telegram_large.jpg", history[0].ImageName)
	assert.Equal(t, model.LabelCimex, history[0].Label)
}

func TestBot_PhotoWithoutModel(t *testing.T) {
	bot, api, _ := setupBot(t, fixedClassifier{prob: 0.1, available: false})

	bot.handleMessage(context.Background(), &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 42},
		Photo: []tgbotapi.PhotoSize{{FileID: "p"}},
	})

	assert.Equal(t, []string{msgModelDown}, api.messages())
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	bot, api, _ := setupBot(t, fixedClassifier{prob: 0.9, available: true})
	ctx, cancel := context.WithCancel(context.Background())

	api.updates <- tgbotapi.Update{Message: command("/help")}

	done := make(chan error)
	go func() { done <- bot.Run(ctx) }()

	require.Eventually(t, func() bool { return len(api.messages()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.True(t, api.stopped)
}
