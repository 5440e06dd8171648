package collector

import (
	"context"
	"sync"
	"time"

	"github.com/bowerhall/daylog/internal/capability"
	"github.com/bowerhall/daylog/internal/config"
	"github.com/bowerhall/daylog/internal/device"
	"github.com/bowerhall/daylog/internal/logger"
	"github.com/bowerhall/daylog/internal/store"
)

const calendarDeniedMsg = "Permission to access calendar was denied"

// CalendarCollector polls writable device calendars for today's events.
// One-way, insert-only sync: device-side edits and deletions after first
// ingest are not reconciled. Dedup is the store's
// (user, title, start_time, end_time) conflict key.
type CalendarCollector struct {
	status

	gate        *capability.Gate
	source      device.CalendarSource
	store       Store
	checkpoints *Checkpoints
	cfg         config.CollectConfig
	tz          *time.Location

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCalendarCollector(gate *capability.Gate, source device.CalendarSource, st Store, checkpoints *Checkpoints, cfg config.CollectConfig, tz *time.Location) *CalendarCollector {
	return &CalendarCollector{
		gate:        gate,
		source:      source,
		store:       st,
		checkpoints: checkpoints,
		cfg:         cfg,
		tz:          tz,
	}
}

// Start launches the polling loop with an immediate first poll.
func (c *CalendarCollector) Start(ctx context.Context) {
	c.set(StateStarting)

	runCtx, cancel := context.WithCancel(ctx)
	c.runMu.Lock()
	c.cancel = cancel
	c.runMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(runCtx)
	}()

	c.set(StateRunning)
	logger.Info("calendar collector started", "interval", c.cfg.CalendarInterval)
}

// Stop cancels the polling loop and clears the error state.
func (c *CalendarCollector) Stop() {
	c.set(StateStopping)

	c.runMu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.runMu.Unlock()

	c.wg.Wait()
	c.clearErr()
	c.set(StateStopped)
}

func (c *CalendarCollector) loop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CalendarInterval)
	defer ticker.Stop()

	c.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// poll ingests events from every writable calendar inside today's local
// window [startOfToday, endOfToday).
func (c *CalendarCollector) poll(ctx context.Context) {
	granted, err := c.gate.Ensure(ctx, device.KindCalendar)
	if err != nil {
		c.softErr(err.Error())
		return
	}
	if !granted {
		c.softErr(calendarDeniedMsg)
		return
	}

	calendars, err := c.source.Calendars(ctx)
	if err != nil {
		c.softErr(err.Error())
		logger.Warn("calendar enumeration failed", "error", err)
		return
	}

	start := startOfDay(time.Now(), c.tz)
	end := start.AddDate(0, 0, 1)

	var rows []store.EventRow
	for _, cal := range calendars {
		if !cal.Writable {
			continue
		}

		events, err := c.source.Events(ctx, cal.ID, start, end)
		if err != nil {
			logger.Warn("calendar event fetch failed", "calendar", cal.Title, "error", err)
			continue
		}

		for _, ev := range events {
			row := store.EventRow{
				Title:     ev.Title,
				StartTime: ev.Start,
				EndTime:   ev.End,
			}
			if ev.Location != "" {
				location := ev.Location
				row.Location = &location
			}
			if ev.Notes != "" {
				notes := ev.Notes
				row.Notes = &notes
			}
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		c.clearErr()
		return
	}

	if !c.store.Online(ctx) {
		logger.Debug("offline, skipping calendar poll", "events", len(rows))
		return
	}

	if err := c.store.UpsertCalendarEvents(ctx, rows); err != nil {
		c.softErr(err.Error())
		logger.Warn("calendar upsert failed", "count", len(rows), "error", err)
		return
	}

	c.clearErr()
	if err := c.checkpoints.Mark("calendar", time.Now()); err != nil {
		logger.Debug("checkpoint write failed", "source", "calendar", "error", err)
	}
	logger.Debug("calendar events ingested", "count", len(rows))
}
