// Package collector samples the device's location, photo library and
// calendar into the remote store. Each collector runs its own loop, owns a
// lifecycle state machine and captures failures as a string error state; the
// coordinator starts and stops all three from one persisted switch.
package collector

import (
	"context"
	"time"

	"github.com/bowerhall/daylog/internal/store"
)

// Store is the slice of the remote store client the collectors write to.
type Store interface {
	Online(ctx context.Context) bool
	InsertLocation(ctx context.Context, row store.LocationRow) error
	UpsertPhotos(ctx context.Context, rows []store.PhotoRow) error
	UpsertCalendarEvents(ctx context.Context, rows []store.EventRow) error
}

// Runner is the uniform surface the coordinator drives.
type Runner interface {
	Start(ctx context.Context)
	Stop()
	State() State
	Err() string
}

func startOfDay(t time.Time, tz *time.Location) time.Time {
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}
