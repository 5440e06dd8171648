package collector

import (
	"context"
	"strings"
	"sync"

	"github.com/bowerhall/daylog/internal/logger"
	"github.com/bowerhall/daylog/internal/store"
)

// Prefs is the slice of the store client holding the persisted collection
// switch.
type Prefs interface {
	EnsureUser(ctx context.Context) (*store.UserRow, error)
	SetBackgroundLogging(ctx context.Context, enabled bool) error
}

// Coordinator drives all three collectors from one boolean, loaded from the
// user's persisted preference and defaulting to off. Every collector
// receives the same switch and starts or stops independently; their error
// strings are aggregated into one combined surface.
type Coordinator struct {
	prefs      Prefs
	collectors []Runner

	mu      sync.Mutex
	enabled bool
	ownErr  string
}

func NewCoordinator(prefs Prefs, location *LocationCollector, photo *PhotoCollector, calendar *CalendarCollector) *Coordinator {
	return &Coordinator{
		prefs:      prefs,
		collectors: []Runner{location, photo, calendar},
	}
}

// Load reads the persisted preference, creating the user record with
// collection off when absent, and starts the collectors when enabled.
func (c *Coordinator) Load(ctx context.Context) error {
	user, err := c.prefs.EnsureUser(ctx)
	if err != nil {
		c.mu.Lock()
		c.ownErr = err.Error()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.enabled = user.BackgroundLoggingEnabled
	c.ownErr = ""
	enabled := c.enabled
	c.mu.Unlock()

	if enabled {
		c.startAll(ctx)
	}

	logger.Info("collection coordinator loaded", "enabled", enabled)
	return nil
}

// SetEnabled persists the switch and toggles the collectors. The preference
// write happens first so a crash mid-toggle reconverges on next load.
func (c *Coordinator) SetEnabled(ctx context.Context, enabled bool) error {
	if err := c.prefs.SetBackgroundLogging(ctx, enabled); err != nil {
		c.mu.Lock()
		c.ownErr = err.Error()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	changed := c.enabled != enabled
	c.enabled = enabled
	c.ownErr = ""
	c.mu.Unlock()

	if !changed {
		return nil
	}

	if enabled {
		c.startAll(ctx)
	} else {
		c.stopAll()
	}

	logger.Info("collection toggled", "enabled", enabled)
	return nil
}

// Enabled reports the current switch state.
func (c *Coordinator) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Stop shuts the collectors down without touching the persisted preference.
func (c *Coordinator) Stop() {
	c.stopAll()
}

// Err joins the coordinator's own error and every collector's error into one
// comma-separated string, empty when all constituents are clear.
func (c *Coordinator) Err() string {
	c.mu.Lock()
	own := c.ownErr
	c.mu.Unlock()

	var parts []string
	if own != "" {
		parts = append(parts, own)
	}
	for _, col := range c.collectors {
		if msg := col.Err(); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, ", ")
}

// States reports each collector's lifecycle state in location, photo,
// calendar order.
func (c *Coordinator) States() []State {
	states := make([]State, len(c.collectors))
	for i, col := range c.collectors {
		states[i] = col.State()
	}
	return states
}

func (c *Coordinator) startAll(ctx context.Context) {
	for _, col := range c.collectors {
		col.Start(ctx)
	}
}

func (c *Coordinator) stopAll() {
	for _, col := range c.collectors {
		if s := col.State(); s == StateRunning || s == StateError {
			col.Stop()
		}
	}
}
