package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/polybot/internal/logging"
)

// BotAPI is the subset of the Telegram client used by TelegramGateway.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// TelegramGateway implements Gateway on top of the Bot API.
type TelegramGateway struct {
	api          BotAPI
	token        string
	fileEndpoint string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewTelegramGateway builds a gateway. token is needed to build file download
// links.
func NewTelegramGateway(api BotAPI, token string, httpClient *http.Client, logger *zap.Logger) *TelegramGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TelegramGateway{
		api:          api,
		token:        token,
		fileEndpoint: tgbotapi.FileEndpoint,
		httpClient:   httpClient,
		logger:       logger.Named("telegram"),
	}
}

// SendText sends a plain text message.
func (g *TelegramGateway) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := g.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return logging.NewOperationError("telegram.send_text", strconv.FormatInt(chatID, 10), err)
	}
	return nil
}

// SendPhoto uploads a local image file. It fails before contacting Telegram if
// the file does not exist.
func (g *TelegramGateway) SendPhoto(ctx context.Context, chatID int64, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ref := strconv.FormatInt(chatID, 10)
	if _, err := os.Stat(localPath); err != nil {
		return logging.NewOperationError("telegram.send_photo", ref, fmt.Errorf("%w: %s", ErrPhotoNotFound, localPath))
	}
	if _, err := g.api.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(localPath))); err != nil {
		return logging.NewOperationError("telegram.send_photo", ref, err)
	}
	return nil
}

// FetchFile resolves fileID and downloads its content.
func (g *TelegramGateway) FetchFile(ctx context.Context, fileID string) (*File, error) {
	info, err := g.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, logging.NewOperationError("telegram.get_file", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(g.fileEndpoint, g.token, info.FilePath), nil)
	if err != nil {
		return nil, logging.NewOperationError("telegram.download_file", fileID, err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, logging.NewOperationError("telegram.download_file", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, logging.NewOperationError("telegram.download_file", fileID, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, logging.NewOperationError("telegram.download_file", fileID, err)
	}

	g.logger.Info("downloaded chat file", zap.String("file_path", info.FilePath), zap.Int("bytes", len(data)))
	return &File{Path: info.FilePath, Data: data}, nil
}

// RegisterWebhook drops any existing webhook and points Telegram at
// <appURL>/<token>/.
func RegisterWebhook(api *tgbotapi.BotAPI, appURL, token string) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return logging.NewOperationError("telegram.delete_webhook", "", err)
	}
	webhook, err := tgbotapi.NewWebhook(fmt.Sprintf("%s/%s/", appURL, token))
	if err != nil {
		return logging.NewOperationError("telegram.new_webhook", "", err)
	}
	if _, err := api.Request(webhook); err != nil {
		return logging.NewOperationError("telegram.set_webhook", "", err)
	}
	return nil
}
