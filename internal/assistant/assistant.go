// Package assistant is the conversation surface: it turns an incoming chat
// message into a recorded conversation turn, runs the query engine and
// resolves the photos to send back.
package assistant

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/bowerhall/daylog/internal/conversation"
	"github.com/bowerhall/daylog/internal/device"
	"github.com/bowerhall/daylog/internal/engine"
	"github.com/bowerhall/daylog/internal/logger"
)

const errorReply = "Sorry, something went wrong answering that. Please try again."

// Asker runs one engine turn.
type Asker interface {
	Ask(ctx context.Context, turn engine.Turn) (engine.Response, error)
}

// Collection is the coordinator surface the /logging command drives.
type Collection interface {
	SetEnabled(ctx context.Context, enabled bool) error
	Enabled() bool
}

// StatusReporter renders the /status report.
type StatusReporter interface {
	Report() string
}

// Photo is an outgoing image payload.
type Photo struct {
	Data      []byte
	MediaType string
}

// Reply is what the bot should send back for one incoming message.
type Reply struct {
	Text   string
	Photos []Photo
}

type Assistant struct {
	conversation *conversation.Manager
	engine       Asker
	collection   Collection
	library      device.PhotoLibrary
	status       StatusReporter
}

func New(conv *conversation.Manager, eng Asker, collection Collection, library device.PhotoLibrary, status StatusReporter) *Assistant {
	return &Assistant{
		conversation: conv,
		engine:       eng,
		collection:   collection,
		library:      library,
		status:       status,
	}
}

// Process handles one incoming message. photo is nil for text-only turns.
// Engine failures surface as a visible errored message in the conversation;
// they never propagate to the bot loop.
func (a *Assistant) Process(ctx context.Context, text string, photo []byte, mediaType string) Reply {
	if strings.HasPrefix(text, "/") && photo == nil {
		return a.command(ctx, text)
	}

	turn := engine.Turn{Query: text}
	userMsg := conversation.Message{Role: "user", Content: text}

	if photo != nil {
		turn.Attachment = &engine.Attachment{
			URI:       "upload://" + uuid.NewString(),
			Data:      photo,
			MediaType: mediaType,
		}
		userMsg.Photos = []string{turn.Attachment.URI}
	}

	a.conversation.Append(ctx, userMsg)

	resp, err := a.engine.Ask(ctx, turn)
	if err != nil {
		logger.Error("engine turn failed", "error", err)
		a.conversation.Append(ctx, conversation.Message{
			Role:    "assistant",
			Content: errorReply,
			Errored: true,
		})
		return Reply{Text: errorReply}
	}

	a.conversation.Append(ctx, conversation.Message{
		Role:    "assistant",
		Content: resp.Text,
		Photos:  resp.Photos,
	})

	return Reply{Text: resp.Text, Photos: a.resolvePhotos(ctx, resp.Photos, turn.Attachment)}
}

func (a *Assistant) command(ctx context.Context, text string) Reply {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/status":
		return Reply{Text: a.status.Report()}

	case "/logging":
		if len(fields) < 2 || (fields[1] != "on" && fields[1] != "off") {
			return Reply{Text: "Usage: /logging on|off"}
		}
		enable := fields[1] == "on"
		if err := a.collection.SetEnabled(ctx, enable); err != nil {
			logger.Error("logging toggle failed", "error", err)
			return Reply{Text: "Couldn't update the logging preference, please try again."}
		}
		if enable {
			return Reply{Text: "Background logging is on."}
		}
		return Reply{Text: "Background logging is off."}

	default:
		return Reply{Text: "Commands: /status, /logging on|off"}
	}
}

// resolvePhotos turns selected photo URIs into payloads. The just-sent
// attachment is returned as-is; library assets are read best-effort, and an
// unreadable asset is simply skipped.
func (a *Assistant) resolvePhotos(ctx context.Context, uris []string, attachment *engine.Attachment) []Photo {
	var photos []Photo
	for _, uri := range uris {
		if attachment != nil && uri == attachment.URI {
			photos = append(photos, Photo{Data: attachment.Data, MediaType: attachment.MediaType})
			continue
		}

		data, mediaType, err := a.library.Read(ctx, uri)
		if err != nil {
			logger.Debug("photo resolve failed", "uri", uri, "error", err)
			continue
		}
		photos = append(photos, Photo{Data: data, MediaType: mediaType})
	}
	return photos
}
