// Package conversation keeps the message history durable across restarts
// and resilient to connectivity loss. The local cache is a transient copy
// reconciled against the remote store, never authoritative over it.
package conversation

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Message is one conversation entry. ID is globally unique and doubles as
// the remote upsert conflict key.
type Message struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
	Photos    []string
	Reaction  string
	Errored   bool
}

// Cache is the durable sqlite copy of the message list.
type Cache struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    photos TEXT,
    reaction TEXT,
    errored INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
`

func NewCache(db *sql.DB) (*Cache, error) {
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	_, err := c.db.Exec(schema)
	return err
}

// ReplaceAll overwrites the cached snapshot with the full in-memory list.
// Last writer wins; the write is idempotent, so reactive re-writes under
// rapid sends are safe.
func (c *Cache) ReplaceAll(messages []Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return err
	}

	for _, m := range messages {
		photos, err := json.Marshal(m.Photos)
		if err != nil {
			return err
		}

		errored := 0
		if m.Errored {
			errored = 1
		}

		_, err = tx.Exec(
			`INSERT INTO messages (id, role, content, created_at, photos, reaction, errored)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Role, m.Content, m.CreatedAt.UTC().Format(time.RFC3339Nano),
			string(photos), m.Reaction, errored,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Load returns the cached messages ordered by timestamp ascending.
func (c *Cache) Load() ([]Message, error) {
	rows, err := c.db.Query(`
		SELECT id, role, content, created_at, photos, reaction, errored
		FROM messages
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var createdAt, photos string
		var errored int

		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &createdAt, &photos, &m.Reaction, &errored); err != nil {
			return nil, err
		}

		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		m.Errored = errored != 0
		if photos != "" {
			json.Unmarshal([]byte(photos), &m.Photos)
		}

		messages = append(messages, m)
	}

	return messages, rows.Err()
}
