package store

import (
	"context"
	"net/url"
	"time"
)

// UserRow carries per-user collection preferences. Created at sign-up with
// everything off; never deleted by the client.
type UserRow struct {
	ID                       string `json:"id"`
	Email                    string `json:"email,omitempty"`
	BackgroundLoggingEnabled bool   `json:"background_logging_enabled"`
	LocationEnabled          bool   `json:"location_enabled"`
	PhotoEnabled             bool   `json:"photo_enabled"`
	CalendarEnabled          bool   `json:"calendar_enabled"`
	OnboardingCompleted      bool   `json:"onboarding_completed"`
}

// LocationRow is one position sample. Immutable once written; duplicates
// across samples are expected and acceptable. Optional fields marshal to
// explicit nulls for store compatibility.
type LocationRow struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Place     string    `json:"place"`
	Accuracy  *float64  `json:"accuracy"`
	Altitude  *float64  `json:"altitude"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
}

// PhotoRow is one photo library asset. (user_id, file_uri) is the dedup key.
type PhotoRow struct {
	UserID    string    `json:"user_id"`
	FileURI   string    `json:"file_uri"`
	Timestamp time.Time `json:"timestamp"`
	Place     *string   `json:"place"`
	Caption   string    `json:"caption"`
}

// EventRow is one calendar event. (user_id, title, start_time, end_time) is
// the dedup key.
type EventRow struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Location  *string   `json:"location"`
	Notes     *string   `json:"notes"`
}

// MessageRow mirrors one conversation message. ID is the upsert conflict
// key; ordering is by created_at ascending.
type MessageRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Photos    []string  `json:"photos"`
	Reaction  *string   `json:"reaction"`
	Errored   bool      `json:"errored"`
}

// EnsureUser fetches the caller's user row, creating it with defaults
// (everything disabled) when absent.
func (c *Client) EnsureUser(ctx context.Context) (*UserRow, error) {
	session := c.CurrentUser()
	if session == nil {
		return nil, ErrNoSession
	}

	params := url.Values{}
	params.Set("id", "eq."+session.UserID)

	var rows []UserRow
	if err := c.selectInto(ctx, "users", params, &rows); err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		return &rows[0], nil
	}

	row := UserRow{ID: session.UserID, Email: session.Email}
	if err := c.insert(ctx, "users", []UserRow{row}); err != nil {
		return nil, err
	}
	return &row, nil
}

// SetBackgroundLogging persists the master collection switch.
func (c *Client) SetBackgroundLogging(ctx context.Context, enabled bool) error {
	session := c.CurrentUser()
	if session == nil {
		return ErrNoSession
	}

	params := url.Values{}
	params.Set("id", "eq."+session.UserID)

	return c.update(ctx, "users", params, map[string]bool{"background_logging_enabled": enabled})
}

// InsertLocation writes one sample. No dedup: semantic visit uniqueness is
// not enforced.
func (c *Client) InsertLocation(ctx context.Context, row LocationRow) error {
	session := c.CurrentUser()
	if session == nil {
		return ErrNoSession
	}
	row.UserID = session.UserID
	return c.insert(ctx, "locations", []LocationRow{row})
}

// UpsertPhotos inserts assets that are not already recorded, keyed by
// (user_id, file_uri). Existing rows are left untouched.
func (c *Client) UpsertPhotos(ctx context.Context, rows []PhotoRow) error {
	session := c.CurrentUser()
	if session == nil {
		return ErrNoSession
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].UserID = session.UserID
	}
	return c.upsert(ctx, "photos", "user_id,file_uri", rows, false)
}

// UpsertCalendarEvents inserts events that are not already recorded, keyed
// by (user_id, title, start_time, end_time).
func (c *Client) UpsertCalendarEvents(ctx context.Context, rows []EventRow) error {
	session := c.CurrentUser()
	if session == nil {
		return ErrNoSession
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].UserID = session.UserID
	}
	return c.upsert(ctx, "calendar_events", "user_id,title,start_time,end_time", rows, false)
}

// UpsertMessages mirrors the local message cache, keyed by id. Existing rows
// are overwritten (reaction and error-flag updates flow through here).
func (c *Client) UpsertMessages(ctx context.Context, rows []MessageRow) error {
	session := c.CurrentUser()
	if session == nil {
		return ErrNoSession
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].UserID = session.UserID
	}
	return c.upsert(ctx, "messages", "id", rows, true)
}

// MessagesAsc fetches the caller's messages ordered by timestamp ascending.
func (c *Client) MessagesAsc(ctx context.Context) ([]MessageRow, error) {
	session := c.CurrentUser()
	if session == nil {
		return nil, ErrNoSession
	}

	params := url.Values{}
	params.Set("user_id", "eq."+session.UserID)
	params.Set("order", "created_at.asc")

	var rows []MessageRow
	if err := c.selectInto(ctx, "messages", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// LocationsBetween fetches samples within [start, end], ascending.
func (c *Client) LocationsBetween(ctx context.Context, start, end time.Time) ([]LocationRow, error) {
	session := c.CurrentUser()
	if session == nil {
		return nil, ErrNoSession
	}

	params := windowParams(session.UserID, "timestamp", start, end)
	var rows []LocationRow
	if err := c.selectInto(ctx, "locations", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// PhotosBetween fetches photo records within [start, end], ascending.
func (c *Client) PhotosBetween(ctx context.Context, start, end time.Time) ([]PhotoRow, error) {
	session := c.CurrentUser()
	if session == nil {
		return nil, ErrNoSession
	}

	params := windowParams(session.UserID, "timestamp", start, end)
	var rows []PhotoRow
	if err := c.selectInto(ctx, "photos", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// EventsBetween fetches calendar events starting within [start, end], ascending.
func (c *Client) EventsBetween(ctx context.Context, start, end time.Time) ([]EventRow, error) {
	session := c.CurrentUser()
	if session == nil {
		return nil, ErrNoSession
	}

	params := windowParams(session.UserID, "start_time", start, end)
	var rows []EventRow
	if err := c.selectInto(ctx, "calendar_events", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func windowParams(userID, timeCol string, start, end time.Time) url.Values {
	params := url.Values{}
	params.Set("user_id", "eq."+userID)
	params.Set(timeCol, "gte."+start.UTC().Format(time.RFC3339))
	params.Add(timeCol, "lte."+end.UTC().Format(time.RFC3339))
	params.Set("order", timeCol+".asc")
	return params
}
