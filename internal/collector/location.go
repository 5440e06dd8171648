package collector

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/bowerhall/daylog/internal/capability"
	"github.com/bowerhall/daylog/internal/config"
	"github.com/bowerhall/daylog/internal/device"
	"github.com/bowerhall/daylog/internal/logger"
	"github.com/bowerhall/daylog/internal/store"
)

const (
	locationDeniedMsg = "Permission to access location was denied"
	unknownPlace      = "Unknown location"
)

// LocationCollector runs two concurrent samplers: a coarse one on the full
// interval with a large distance threshold, and a fine one on half the
// interval, smaller threshold, active only while the app surface is visible.
// Offline samples are dropped, not queued.
type LocationCollector struct {
	status

	gate        *capability.Gate
	source      device.LocationSource
	geocoder    device.Geocoder
	store       Store
	checkpoints *Checkpoints
	cfg         config.CollectConfig

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLocationCollector(gate *capability.Gate, source device.LocationSource, geocoder device.Geocoder, st Store, checkpoints *Checkpoints, cfg config.CollectConfig) *LocationCollector {
	return &LocationCollector{
		gate:        gate,
		source:      source,
		geocoder:    geocoder,
		store:       st,
		checkpoints: checkpoints,
		cfg:         cfg,
	}
}

// Start acquires the location capability and launches both samplers.
// Foreground denial is unrecoverable and parks the collector in the error
// state; background denial only degrades the coarse sampler to
// foreground-only.
func (c *LocationCollector) Start(ctx context.Context) {
	c.set(StateStarting)

	foreground, background, err := c.gate.EnsureLocation(ctx)
	if err != nil {
		c.fail(err.Error())
		return
	}
	if !foreground {
		c.fail(locationDeniedMsg)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.runMu.Lock()
	c.cancel = cancel
	c.runMu.Unlock()

	coarseOnlyForeground := !background

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.sample(runCtx, sampler{
			name:           "coarse",
			interval:       c.cfg.LocationInterval,
			thresholdM:     c.cfg.CoarseThresholdM,
			foregroundOnly: coarseOnlyForeground,
		})
	}()
	go func() {
		defer c.wg.Done()
		c.sample(runCtx, sampler{
			name:           "fine",
			interval:       c.cfg.LocationInterval / 2,
			thresholdM:     c.cfg.FineThresholdM,
			foregroundOnly: true,
		})
	}()

	c.set(StateRunning)
	logger.Info("location collector started",
		"interval", c.cfg.LocationInterval, "background", background)
}

// Stop cancels both samplers, waits for them to drain and clears the error
// state.
func (c *LocationCollector) Stop() {
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

type sampler struct {
	name           string
	interval       time.Duration
	thresholdM     float64
	foregroundOnly bool
}

func (c *LocationCollector) sample(ctx context.Context, s sampler) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last *device.Position
	last = c.sampleOnce(ctx, s, last)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = c.sampleOnce(ctx, s, last)
		}
	}
}

// sampleOnce takes one fix and writes it when it clears the sampler's
// distance threshold. Every failure is per-sample: at most one sample is
// lost, the loop keeps running.
func (c *LocationCollector) sampleOnce(ctx context.Context, s sampler, last *device.Position) *device.Position {
	if s.foregroundOnly && !c.source.Foreground() {
		return last
	}

	pos, err := c.source.Current(ctx)
	if err != nil {
		logger.Debug("location fix failed", "sampler", s.name, "error", err)
		return last
	}

	if last != nil && haversineM(last.Latitude, last.Longitude, pos.Latitude, pos.Longitude) < s.thresholdM {
		return last
	}

	place, err := c.geocoder.Reverse(ctx, pos.Latitude, pos.Longitude)
	if err != nil || place == "" {
		place = unknownPlace
	}

	if !c.store.Online(ctx) {
		// dropped, not queued
		logger.Debug("offline, dropping location sample", "sampler", s.name)
		return &pos
	}

	row := store.LocationRow{
		Timestamp: pos.Time,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Place:     place,
	}
	if pos.Accuracy > 0 {
		row.Accuracy = ptr(pos.Accuracy)
	}
	if pos.Altitude != 0 {
		row.Altitude = ptr(pos.Altitude)
	}
	if pos.Speed > 0 {
		row.Speed = ptr(pos.Speed)
	}
	if pos.Heading > 0 {
		row.Heading = ptr(pos.Heading)
	}

	if err := c.store.InsertLocation(ctx, row); err != nil {
		logger.Warn("location write failed", "sampler", s.name, "error", err)
		return &pos
	}

	if err := c.checkpoints.Mark("location", time.Now()); err != nil {
		logger.Debug("checkpoint write failed", "source", "location", "error", err)
	}

	logger.Debug("location recorded", "sampler", s.name, "place", place)
	return &pos
}

func ptr(v float64) *float64 {
	return &v
}

const earthRadiusM = 6371000

// haversineM returns the great-circle distance between two coordinates in
// meters.
func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
