// Package telegram runs a bot that classifies photos sent to it.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bedbug-detector/internal/logger"
	"bedbug-detector/internal/model"
	"bedbug-detector/internal/service"
	"bedbug-detector/internal/service/ai"
)

const (
	msgStart = `👋 Hi! I check photos for bedbugs (Cimex).

📸 Send me a photo and I will tell you what I see.

📋 Commands:
/help — how to take a good photo`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Send a photo of the insect or the spot you are worried about
2️⃣ The bot analyses it, trying extra orientations when unsure
3️⃣ You get a verdict with a confidence score

💡 Tips:
• Good lighting, insect in focus
• Fill the frame with the insect
• Avoid heavy filters`

	msgSendPhoto       = "📸 Please send a photo to check."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
	msgProcessing      = "⏳ Analysing the photo..."
	msgModelDown       = "⚠️ The model is not loaded right now. Please try again later."
	msgProcessingError = "⚠️ Could not process the photo. Please try another one."

	// maxPhotoBytes bounds a downloaded photo.
	maxPhotoBytes = 20 << 20
)

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// Bot answers photo messages with a bedbug verdict.
type Bot struct {
	api     botAPI
	manager *service.Manager
	logger  *logger.Logger
	client  *http.Client
	fileURL func(tgbotapi.File) string
}

// NewBot authorizes against the Telegram API with token.
func NewBot(token string, manager *service.Manager, logger *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorization failed: %w", err)
	}

	logger.Info("Telegram bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:     api,
		manager: manager,
		logger:  logger,
		client:  http.DefaultClient,
		fileURL: func(f tgbotapi.File) string { return f.Link(api.Token) },
	}, nil
}

// Run processes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)
	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)
	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	if !b.manager.ModelLoaded() {
		b.sendMessage(msg.Chat.ID, msgModelDown)
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	// Largest resolution comes last
	photo := msg.Photo[len(msg.Photo)-1]

	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("Error downloading telegram photo %s: %v", photo.FileID, err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	out, err := b.manager.Predict(ctx, data, "telegram_"+photo.FileID+".jpg", true, service.SourceTelegram)
	if err != nil {
		b.logger.Error("Telegram prediction failed for %s: %v", photo.FileID, err)
		if errors.Is(err, ai.ErrModelUnavailable) {
			b.sendMessage(msg.Chat.ID, msgModelDown)
			return
		}
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	b.sendMessage(msg.Chat.ID, FormatVerdict(out.Result))
}

// FormatVerdict renders a result as a chat message.
func FormatVerdict(res model.Result) string {
	var headline string
	switch res.Label {
	case model.LabelCimex:
		headline = "🪲 Bedbug (Cimex) detected"
	case model.LabelNonCimex:
		headline = "✅ Not a bedbug"
	default:
		headline = "🤔 Uncertain, try a sharper or closer photo"
	}

	text := fmt.Sprintf("%s\nConfidence: %.1f%%", headline, res.Confidence*100)
	if res.Views > 1 {
		text += fmt.Sprintf("\nChecked %d orientations", res.Views)
	}
	return text
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.fileURL(file), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Error sending telegram message: %v", err)
	}
}
