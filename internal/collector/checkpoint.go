package collector

import (
	"database/sql"
	"time"
)

// Checkpoints records the last successful poll per source in the local
// sqlite database. The status surface reads it to show collector freshness.
type Checkpoints struct {
	db *sql.DB
}

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS collector_checkpoints (
    source TEXT PRIMARY KEY,
    last_poll TEXT NOT NULL
);
`

func NewCheckpoints(db *sql.DB) (*Checkpoints, error) {
	c := &Checkpoints{db: db}
	if _, err := db.Exec(checkpointSchema); err != nil {
		return nil, err
	}
	return c, nil
}

// Mark stores t as the last successful poll for source.
func (c *Checkpoints) Mark(source string, t time.Time) error {
	_, err := c.db.Exec(`
		INSERT INTO collector_checkpoints (source, last_poll) VALUES (?, ?)
		ON CONFLICT(source) DO UPDATE SET last_poll = excluded.last_poll`,
		source, t.UTC().Format(time.RFC3339))
	return err
}

// Last returns the last successful poll for source, ok false when the source
// has never polled.
func (c *Checkpoints) Last(source string) (time.Time, bool, error) {
	var raw string
	err := c.db.QueryRow(
		`SELECT last_poll FROM collector_checkpoints WHERE source = ?`, source,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// All returns every recorded checkpoint keyed by source.
func (c *Checkpoints) All() (map[string]time.Time, error) {
	rows, err := c.db.Query(`SELECT source, last_poll FROM collector_checkpoints`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var source, raw string
		if err := rows.Scan(&source, &raw); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			out[source] = t
		}
	}
	return out, rows.Err()
}
