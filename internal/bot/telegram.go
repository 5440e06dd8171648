package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/daylog/internal/logger"
)

const maxImageSize = 20 * 1024 * 1024 // 20MB limit for images

type telegram struct {
	api         *tgbotapi.BotAPI
	handler     Handler
	ownerChatID int64
}

func newTelegram(token string, handler Handler, ownerChatID int64) (Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &telegram{api: api, handler: handler, ownerChatID: ownerChatID}, nil
}

func (t *telegram) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go t.handleMessage(ctx, update.Message)
		}
	}
}

func (t *telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if t.ownerChatID != 0 && msg.Chat.ID != t.ownerChatID {
		logger.Debug("ignoring message from unknown chat", "chatID", msg.Chat.ID)
		return
	}

	var photo []byte
	var mediaType string
	var text string

	if len(msg.Photo) > 0 {
		// largest rendition is last
		fileID := msg.Photo[len(msg.Photo)-1].FileID

		data, mt, err := t.downloadFile(fileID)
		if err != nil {
			logger.Error("failed to download photo", "error", err)
		} else {
			photo, mediaType = data, mt
		}

		text = msg.Caption
		logger.Info("photo received", "from", msg.From.UserName, "caption", truncate(text, 50))
	} else {
		text = msg.Text
		logger.Info("message received", "from", msg.From.UserName, "text", truncate(text, 50))
	}

	reply := t.handler.Process(ctx, text, photo, mediaType)

	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := t.api.Send(out); err != nil {
		logger.Error("send failed", "error", err)
		return
	}

	for _, p := range reply.Photos {
		if err := t.SendPhoto(msg.Chat.ID, p.Data, ""); err != nil {
			logger.Error("reply photo failed", "error", err)
		}
	}

	logger.Info("reply sent", "chars", len(reply.Text), "photos", len(reply.Photos))
}

func (t *telegram) Send(chatID int64, message string) error {
	msg := tgbotapi.NewMessage(chatID, message)
	_, err := t.api.Send(msg)
	if err != nil {
		logger.Error("proactive send failed", "error", err, "chatID", chatID)
	} else {
		logger.Info("proactive message sent", "chatID", chatID, "chars", len(message))
	}
	return err
}

func (t *telegram) SendPhoto(chatID int64, data []byte, caption string) error {
	photoBytes := tgbotapi.FileBytes{Name: "image", Bytes: data}
	msg := tgbotapi.NewPhoto(chatID, photoBytes)
	msg.Caption = caption
	_, err := t.api.Send(msg)
	if err != nil {
		logger.Error("send photo failed", "error", err, "chatID", chatID)
	}
	return err
}

func (t *telegram) downloadFile(fileID string) ([]byte, string, error) {
	file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", err
	}

	url := file.Link(t.api.Token)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, "", err
	}

	return data, http.DetectContentType(data), nil
}
