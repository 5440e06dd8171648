// Package sim is a YAML-fixture-backed device implementation. It stands in
// for the phone bridge during development and in tests: permissions,
// positions, photos and calendar events all come from a fixture file and can
// be mutated at runtime.
package sim

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bowerhall/daylog/internal/device"
)

type fixture struct {
	Permissions struct {
		Location           string `yaml:"location"`
		LocationBackground string `yaml:"location_background"`
		Photos             string `yaml:"photos"`
		Calendar           string `yaml:"calendar"`
	} `yaml:"permissions"`
	Foreground bool `yaml:"foreground"`
	Positions  []struct {
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
		Accuracy  float64 `yaml:"accuracy"`
	} `yaml:"positions"`
	Photos []struct {
		URI       string  `yaml:"uri"`
		CreatedAt string  `yaml:"created_at"`
		Caption   string  `yaml:"caption"`
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
	} `yaml:"photos"`
	Calendars []struct {
		ID       string `yaml:"id"`
		Title    string `yaml:"title"`
		Writable bool   `yaml:"writable"`
		Events   []struct {
			Title    string `yaml:"title"`
			Start    string `yaml:"start"`
			End      string `yaml:"end"`
			Location string `yaml:"location"`
			Notes    string `yaml:"notes"`
		} `yaml:"events"`
	} `yaml:"calendars"`
	Places []struct {
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
		Label     string  `yaml:"label"`
	} `yaml:"places"`
}

// Device implements every device interface from a single mutable state. The
// zero value is usable in tests; Load builds one from a fixture file.
type Device struct {
	mu sync.Mutex

	permissions map[device.Kind]device.PermissionStatus
	background  device.PermissionStatus
	foreground  bool

	positions []device.Position
	posIndex  int

	photos    []device.PhotoAsset
	photoData map[string][]byte

	calendars []device.Calendar
	events    map[string][]device.CalendarEvent

	places map[[2]float64]string

	requests int // prompts shown, for tests
}

// New returns an empty simulator with all permissions undetermined.
func New() *Device {
	return &Device{
		permissions: map[device.Kind]device.PermissionStatus{},
		photoData:   map[string][]byte{},
		events:      map[string][]device.CalendarEvent{},
		places:      map[[2]float64]string{},
	}
}

// Load reads a fixture file and builds a simulator from it.
func Load(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	d := New()
	d.foreground = f.Foreground
	d.permissions[device.KindLocation] = parseStatus(f.Permissions.Location)
	d.permissions[device.KindPhotos] = parseStatus(f.Permissions.Photos)
	d.permissions[device.KindCalendar] = parseStatus(f.Permissions.Calendar)
	d.background = parseStatus(f.Permissions.LocationBackground)

	for _, p := range f.Positions {
		d.positions = append(d.positions, device.Position{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Accuracy:  p.Accuracy,
		})
	}

	for _, p := range f.Photos {
		created, err := time.Parse(time.RFC3339, p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("photo %s: %w", p.URI, err)
		}
		d.photos = append(d.photos, device.PhotoAsset{
			URI:         p.URI,
			CreatedAt:   created,
			Caption:     p.Caption,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			HasLocation: p.Latitude != 0 || p.Longitude != 0,
		})
	}

	for _, c := range f.Calendars {
		d.calendars = append(d.calendars, device.Calendar{ID: c.ID, Title: c.Title, Writable: c.Writable})
		for _, e := range c.Events {
			start, err := time.Parse(time.RFC3339, e.Start)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", e.Title, err)
			}
			end, err := time.Parse(time.RFC3339, e.End)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", e.Title, err)
			}
			d.events[c.ID] = append(d.events[c.ID], device.CalendarEvent{
				Title:    e.Title,
				Start:    start,
				End:      end,
				Location: e.Location,
				Notes:    e.Notes,
			})
		}
	}

	for _, p := range f.Places {
		d.places[[2]float64{p.Latitude, p.Longitude}] = p.Label
	}

	return d, nil
}

func parseStatus(s string) device.PermissionStatus {
	switch s {
	case "granted":
		return device.PermissionGranted
	case "denied":
		return device.PermissionDenied
	default:
		return device.PermissionUndetermined
	}
}

// --- device.Permissions ---

func (d *Device) Status(kind device.Kind) device.PermissionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permissions[kind]
}

func (d *Device) Request(ctx context.Context, kind device.Kind) (device.PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests++
	// undetermined resolves to granted on prompt; an explicit denial sticks
	if d.permissions[kind] == device.PermissionUndetermined {
		d.permissions[kind] = device.PermissionGranted
	}
	return d.permissions[kind], nil
}

func (d *Device) RequestBackground(ctx context.Context) (device.PermissionStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests++
	if d.background == device.PermissionUndetermined {
		d.background = device.PermissionGranted
	}
	return d.background, nil
}

// SetPermission overrides the stored status, for tests and fixtures.
func (d *Device) SetPermission(kind device.Kind, status device.PermissionStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permissions[kind] = status
}

// SetBackgroundPermission overrides the background location status.
func (d *Device) SetBackgroundPermission(status device.PermissionStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.background = status
}

// Requests reports how many permission prompts were shown.
func (d *Device) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

// --- device.LocationSource ---

func (d *Device) Current(ctx context.Context) (device.Position, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.positions) == 0 {
		return device.Position{}, fmt.Errorf("no position available")
	}

	pos := d.positions[d.posIndex]
	if d.posIndex < len(d.positions)-1 {
		d.posIndex++
	}
	pos.Time = time.Now()
	return pos, nil
}

func (d *Device) Foreground() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foreground
}

// SetForeground flips the simulated app visibility.
func (d *Device) SetForeground(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = v
}

// PushPosition appends a position to the replay sequence.
func (d *Device) PushPosition(p device.Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.positions = append(d.positions, p)
}

// --- device.PhotoLibrary ---

func (d *Device) AssetsSince(ctx context.Context, t time.Time, limit int) ([]device.PhotoAsset, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []device.PhotoAsset
	for _, a := range d.photos {
		if !a.CreatedAt.Before(t) {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Device) Read(ctx context.Context, uri string) ([]byte, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, ok := d.photoData[uri]
	if !ok {
		return nil, "", fmt.Errorf("no data for asset %s", uri)
	}
	return data, "image/jpeg", nil
}

// AddPhoto adds an asset (and optional raw bytes) to the library.
func (d *Device) AddPhoto(a device.PhotoAsset, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.photos = append(d.photos, a)
	if data != nil {
		d.photoData[a.URI] = data
	}
}

// --- device.CalendarSource ---

func (d *Device) Calendars(ctx context.Context) ([]device.Calendar, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.Calendar(nil), d.calendars...), nil
}

func (d *Device) Events(ctx context.Context, calendarID string, start, end time.Time) ([]device.CalendarEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []device.CalendarEvent
	for _, e := range d.events[calendarID] {
		if !e.Start.Before(start) && e.Start.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

// AddCalendar registers a calendar with its events.
func (d *Device) AddCalendar(c device.Calendar, events []device.CalendarEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calendars = append(d.calendars, c)
	d.events[c.ID] = append(d.events[c.ID], events...)
}

// --- device.Geocoder ---

func (d *Device) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if label, ok := d.places[[2]float64{lat, lon}]; ok {
		return label, nil
	}
	return "", nil
}

// AddPlace registers a reverse-geocode result.
func (d *Device) AddPlace(lat, lon float64, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.places[[2]float64{lat, lon}] = label
}
