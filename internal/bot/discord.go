package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bowerhall/daylog/internal/logger"
)

type discord struct {
	session *discordgo.Session
	handler Handler
	ctx     context.Context
}

func newDiscord(token string, handler Handler) (Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	d := &discord{
		session: session,
		handler: handler,
	}

	session.AddHandler(d.handleMessage)

	return d, nil
}

func (d *discord) Start(ctx context.Context) error {
	d.ctx = ctx

	if err := d.session.Open(); err != nil {
		return err
	}

	<-ctx.Done()
	return d.session.Close()
}

func (d *discord) Send(chatID int64, message string) error {
	channelID := fmt.Sprintf("%d", chatID)
	_, err := d.session.ChannelMessageSend(channelID, message)
	if err != nil {
		logger.Error("discord send failed", "error", err, "channelID", channelID)
	}
	return err
}

func (d *discord) SendPhoto(chatID int64, data []byte, caption string) error {
	channelID := fmt.Sprintf("%d", chatID)
	_, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{
			{
				Name:   "image.png",
				Reader: bytes.NewReader(data),
			},
		},
	})
	if err != nil {
		logger.Error("discord send photo failed", "error", err, "channelID", channelID)
	}
	return err
}

func (d *discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	logger.Info("message received", "from", m.Author.Username, "text", truncate(m.Content, 50))

	var photo []byte
	var mediaType string
	for _, att := range m.Attachments {
		if !strings.HasPrefix(att.ContentType, "image/") {
			continue
		}
		data, err := downloadAttachment(att.URL)
		if err != nil {
			logger.Error("failed to download attachment", "error", err)
			continue
		}
		photo, mediaType = data, att.ContentType
		break
	}

	reply := d.handler.Process(d.ctx, m.Content, photo, mediaType)

	if _, err := s.ChannelMessageSendReply(m.ChannelID, reply.Text, m.Reference()); err != nil {
		logger.Error("discord reply failed", "error", err)
		return
	}

	for _, p := range reply.Photos {
		_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
			Files: []*discordgo.File{
				{
					Name:   "image.png",
					Reader: bytes.NewReader(p.Data),
				},
			},
		})
		if err != nil {
			logger.Error("discord reply photo failed", "error", err)
		}
	}
}

func downloadAttachment(url string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
}
