// Package engine answers user queries against the collected day: it gathers
// time-windowed calendar, location and photo records, assembles them into a
// structured prompt and calls the completion backend with bounded retry.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/bowerhall/daylog/internal/llm"
	"github.com/bowerhall/daylog/internal/logger"
	"github.com/bowerhall/daylog/internal/store"
)

const (
	defaultQuery   = "What is in this photo?"
	visionFallback = "Sorry, I couldn't make out the details of this photo."

	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Records is the slice of the store client the engine reads.
type Records interface {
	EventsBetween(ctx context.Context, start, end time.Time) ([]store.EventRow, error)
	LocationsBetween(ctx context.Context, start, end time.Time) ([]store.LocationRow, error)
	PhotosBetween(ctx context.Context, start, end time.Time) ([]store.PhotoRow, error)
}

// Attachment is a photo sent with the current turn.
type Attachment struct {
	URI       string
	Data      []byte
	MediaType string
}

// Turn is one user query, optionally with an attached photo.
type Turn struct {
	Query      string
	Attachment *Attachment
}

// Response is the answer plus the photo URIs to show alongside it.
type Response struct {
	Text   string
	Photos []string
}

type Engine struct {
	records    Records
	completion llm.LLM
	vision     llm.LLM
	tz         *time.Location

	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

func New(records Records, completion, vision llm.LLM, tz *time.Location) *Engine {
	return &Engine{
		records:    records,
		completion: completion,
		vision:     vision,
		tz:         tz,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
}

// Ask runs one turn. A failed vision call degrades to a fallback
// description; a completion failure after the retry budget is the only error
// surfaced, and it belongs to this turn alone.
func (e *Engine) Ask(ctx context.Context, turn Turn) (Response, error) {
	query := turn.Query
	if query == "" && turn.Attachment != nil {
		query = defaultQuery
	}

	visionDesc := ""
	if turn.Attachment != nil {
		visionDesc = e.describe(ctx, turn.Attachment)
	}

	w := ComputeWindows(e.now(), e.tz)

	events, err := e.records.EventsBetween(ctx, w.StartOfMonth, w.EndOfToday)
	if err != nil {
		logger.Warn("event fetch failed", "error", err)
	}
	locations, err := e.records.LocationsBetween(ctx, w.StartOfMonth, w.EndOfToday)
	if err != nil {
		logger.Warn("location fetch failed", "error", err)
	}
	photos, err := e.records.PhotosBetween(ctx, w.StartOfMonth, w.EndOfToday)
	if err != nil {
		logger.Warn("photo fetch failed", "error", err)
	}

	contextBlock := renderContext(w, e.tz, events, locations, photos, visionDesc)

	answer, err := e.complete(ctx, contextBlock, query)
	if err != nil {
		return Response{}, err
	}

	resp := Response{Text: answer}
	if turn.Attachment != nil {
		resp.Photos = []string{turn.Attachment.URI}
	} else {
		resp.Photos = selectPhotos(query, w, photos, locations)
	}
	return resp, nil
}

// describe asks the vision backend for a textual description of the
// attachment. Failures never fail the turn.
func (e *Engine) describe(ctx context.Context, a *Attachment) string {
	desc, err := e.vision.Chat(ctx, visionSystemPrompt, []llm.Message{{
		Role:    "user",
		Content: "Describe this photo in a few sentences.",
		Images:  []llm.ImageContent{{Data: a.Data, MediaType: a.MediaType}},
	}})
	if err != nil || desc == "" {
		logger.Warn("vision call failed, using fallback description", "error", err)
		return visionFallback
	}
	return desc
}

// complete calls the completion backend with up to maxRetries retries and
// exponential backoff between attempts.
func (e *Engine) complete(ctx context.Context, contextBlock, query string) (string, error) {
	messages := []llm.Message{{
		Role:    "user",
		Content: contextBlock + "\n\nUser question: " + query,
	}}

	var lastErr error
	for attempt := 0; ; attempt++ {
		answer, err := e.completion.Chat(ctx, systemPreamble, messages)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if attempt == e.maxRetries {
			break
		}

		delay := e.retryDelay * time.Duration(1<<attempt)
		logger.Debug("completion retry", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", e.maxRetries+1, lastErr)
}
