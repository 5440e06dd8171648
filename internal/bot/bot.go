// Package bot connects the assistant to chat platforms. Both
// implementations are thin: receive a message, hand it to the assistant,
// send the reply and its photos back.
package bot

import (
	"context"
	"fmt"

	"github.com/bowerhall/daylog/internal/assistant"
)

// Handler processes one incoming chat message.
type Handler interface {
	Process(ctx context.Context, text string, photo []byte, mediaType string) assistant.Reply
}

type Bot interface {
	Start(ctx context.Context) error
	Send(chatID int64, message string) error
	SendPhoto(chatID int64, data []byte, caption string) error
}

type Config struct {
	Provider    string
	Token       string
	OwnerChatID int64 // Telegram: restrict to this chat ID
}

func New(cfg Config, handler Handler) (Bot, error) {
	switch cfg.Provider {
	case "telegram":
		return newTelegram(cfg.Token, handler, cfg.OwnerChatID)
	case "discord":
		return newDiscord(cfg.Token, handler)
	default:
		return nil, fmt.Errorf("unknown bot provider: %s", cfg.Provider)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
