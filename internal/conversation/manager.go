package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bowerhall/daylog/internal/logger"
)

// Manager owns the in-memory message list. All mutations flow through it:
// each one persists the full snapshot locally, then pushes to the remote
// store (deferred when offline).
type Manager struct {
	cache  *Cache
	syncer *Syncer

	mu       sync.Mutex
	messages []Message
}

func NewManager(cache *Cache, syncer *Syncer) *Manager {
	return &Manager{cache: cache, syncer: syncer}
}

// Load reads the local cache first (best-effort), then merges the remote
// copy when online. On id collision the local entry wins: colliding ids are
// filtered out of the incoming set before concatenation. The result is
// re-sorted by timestamp ascending.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	local, err := m.cache.Load()
	if err != nil {
		// corrupt or absent cache is not fatal, remote is authoritative
		logger.Warn("local message cache unreadable", "error", err)
		local = nil
	}

	m.messages = local

	remote, err := m.syncer.Fetch(ctx)
	if err != nil {
		logger.Warn("remote message fetch failed", "error", err)
		return nil
	}

	if len(remote) > 0 {
		m.messages = merge(m.messages, remote)
		if err := m.cache.ReplaceAll(m.messages); err != nil {
			logger.Warn("failed to persist merged messages", "error", err)
		}
	}

	return nil
}

// Append adds a message, persists the snapshot and syncs.
func (m *Manager) Append(ctx context.Context, msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)
	sortByTime(m.messages)
	m.persistAndSync(ctx)

	return msg
}

// SetReaction updates the per-user reaction on one message.
func (m *Manager) SetReaction(ctx context.Context, id, reaction string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Reaction = reaction
			m.persistAndSync(ctx)
			return true
		}
	}
	return false
}

// Messages returns a copy of the current list, timestamp ascending.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Offline reports whether the last sync was deferred.
func (m *Manager) Offline() bool {
	return m.syncer.Offline()
}

func (m *Manager) persistAndSync(ctx context.Context) {
	if err := m.cache.ReplaceAll(m.messages); err != nil {
		logger.Error("failed to persist message cache", "error", err)
	}
	m.syncer.Push(ctx, m.messages)
}

func merge(local, incoming []Message) []Message {
	seen := make(map[string]bool, len(local))
	for _, m := range local {
		seen[m.ID] = true
	}

	out := append([]Message(nil), local...)
	for _, m := range incoming {
		if !seen[m.ID] {
			out = append(out, m)
		}
	}

	sortByTime(out)
	return out
}

func sortByTime(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
