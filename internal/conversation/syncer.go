package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bowerhall/daylog/internal/logger"
	"github.com/bowerhall/daylog/internal/store"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Remote is the slice of the store client the syncer needs.
type Remote interface {
	Online(ctx context.Context) bool
	UpsertMessages(ctx context.Context, rows []store.MessageRow) error
	MessagesAsc(ctx context.Context) ([]store.MessageRow, error)
}

// Syncer mirrors the local message list to the remote store. Offline or
// exhausted-retry pushes are deferred, never fatal: the messages stay in the
// local cache and go out on a later push.
type Syncer struct {
	remote      Remote
	maxAttempts int
	baseDelay   time.Duration

	mu      sync.Mutex
	offline bool
	lastErr string
}

func NewSyncer(remote Remote) *Syncer {
	return &Syncer{
		remote:      remote,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// Push bulk-upserts the full message list keyed by id. Connectivity is
// checked proactively: when offline the remote write is skipped entirely.
func (s *Syncer) Push(ctx context.Context, messages []Message) {
	if !s.remote.Online(ctx) {
		s.setOffline("offline, will sync when online")
		return
	}

	rows := toRows(messages)

	var err error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err = s.remote.UpsertMessages(ctx, rows)
		if err == nil {
			s.setOnline()
			return
		}

		if errors.Is(err, store.ErrNoSession) {
			// not signed in yet, expected during startup
			return
		}

		if attempt < s.maxAttempts-1 {
			delay := s.baseDelay * time.Duration(1<<attempt)
			logger.Debug("message sync retry", "attempt", attempt+1, "delay", delay, "error", err)
			time.Sleep(delay)
		}
	}

	logger.Warn("message sync failed, will sync when online", "error", err)
	s.setOffline("sync failed, will sync when online")
}

// Fetch pulls the remote message list ordered ascending. Returns nil without
// error when offline or signed out.
func (s *Syncer) Fetch(ctx context.Context) ([]Message, error) {
	if !s.remote.Online(ctx) {
		s.setOffline("offline, will sync when online")
		return nil, nil
	}

	rows, err := s.remote.MessagesAsc(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}

	s.setOnline()
	return fromRows(rows), nil
}

// Offline reports whether the last sync attempt was deferred.
func (s *Syncer) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// Err returns the soft error from the last deferred sync, empty when clear.
func (s *Syncer) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Syncer) setOffline(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = true
	s.lastErr = reason
}

func (s *Syncer) setOnline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = false
	s.lastErr = ""
}

func toRows(messages []Message) []store.MessageRow {
	rows := make([]store.MessageRow, len(messages))
	for i, m := range messages {
		row := store.MessageRow{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Photos:    m.Photos,
			Errored:   m.Errored,
		}
		if m.Reaction != "" {
			reaction := m.Reaction
			row.Reaction = &reaction
		}
		rows[i] = row
	}
	return rows
}

func fromRows(rows []store.MessageRow) []Message {
	messages := make([]Message, len(rows))
	for i, r := range rows {
		m := Message{
			ID:        r.ID,
			Role:      r.Role,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
			Photos:    r.Photos,
			Errored:   r.Errored,
		}
		if r.Reaction != nil {
			m.Reaction = *r.Reaction
		}
		messages[i] = m
	}
	return messages
}
