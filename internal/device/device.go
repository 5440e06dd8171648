// Package device defines the contracts daylog consumes from the host
// platform: permission prompts, the location radio, the photo library, the
// calendar database and reverse geocoding. The daemon never talks to
// platform APIs directly; collectors depend on these interfaces so the
// platform bridge (or the sim backend) can be swapped underneath.
package device

import (
	"context"
	"time"
)

// Kind identifies a permission-gated data source.
type Kind string

const (
	KindLocation Kind = "location"
	KindPhotos   Kind = "photos"
	KindCalendar Kind = "calendar"
)

// PermissionStatus mirrors the three-valued OS permission state.
type PermissionStatus int

const (
	PermissionUndetermined PermissionStatus = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionStatus) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

// Permissions is the OS permission system. Request shows a prompt and blocks
// until the user answers; Status never prompts.
type Permissions interface {
	Status(kind Kind) PermissionStatus
	Request(ctx context.Context, kind Kind) (PermissionStatus, error)
	// RequestBackground asks for always-on location after a foreground
	// grant. Only meaningful for KindLocation.
	RequestBackground(ctx context.Context) (PermissionStatus, error)
}

// Position is a single location fix.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Altitude  float64
	Speed     float64
	Heading   float64
	Time      time.Time
}

// LocationSource reads the device position. Foreground reports whether the
// app surface is currently visible; the fine sampler only runs while it is.
type LocationSource interface {
	Current(ctx context.Context) (Position, error)
	Foreground() bool
}

// PhotoAsset is the metadata the photo library exposes for one asset. URI is
// stable across polls and is the dedup key.
type PhotoAsset struct {
	URI         string
	CreatedAt   time.Time
	Caption     string
	Latitude    float64
	Longitude   float64
	HasLocation bool
}

// PhotoLibrary enumerates and reads device photos.
type PhotoLibrary interface {
	// AssetsSince returns assets created at or after t, in library order,
	// at most limit.
	AssetsSince(ctx context.Context, t time.Time, limit int) ([]PhotoAsset, error)
	// Read returns the raw bytes and MIME type for an asset.
	Read(ctx context.Context, uri string) ([]byte, string, error)
}

// Calendar describes one device calendar.
type Calendar struct {
	ID       string
	Title    string
	Writable bool
}

// CalendarEvent is one event as the device calendar reports it.
type CalendarEvent struct {
	Title    string
	Start    time.Time
	End      time.Time
	Location string
	Notes    string
}

// CalendarSource enumerates device calendars and their events.
type CalendarSource interface {
	Calendars(ctx context.Context) ([]Calendar, error)
	Events(ctx context.Context, calendarID string, start, end time.Time) ([]CalendarEvent, error)
}

// Geocoder resolves coordinates to a human-readable place label.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}
