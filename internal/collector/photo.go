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

const photosDeniedMsg = "Permission to access photos was denied"

// BlobMirror copies photo bytes to object storage. Optional; nil disables
// mirroring.
type BlobMirror interface {
	MirrorPhoto(ctx context.Context, uri string, data []byte, contentType string) error
}

// PhotoCollector polls the device photo library on a fixed interval, with one
// immediate poll on enable. Dedup happens at the store via the
// (user, file_uri) conflict key, so re-observing an asset is harmless.
type PhotoCollector struct {
	status

	gate        *capability.Gate
	library     device.PhotoLibrary
	geocoder    device.Geocoder
	store       Store
	blob        BlobMirror
	checkpoints *Checkpoints
	cfg         config.CollectConfig
	tz          *time.Location

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPhotoCollector(gate *capability.Gate, library device.PhotoLibrary, geocoder device.Geocoder, st Store, blob BlobMirror, checkpoints *Checkpoints, cfg config.CollectConfig, tz *time.Location) *PhotoCollector {
	return &PhotoCollector{
		gate:        gate,
		library:     library,
		geocoder:    geocoder,
		store:       st,
		blob:        blob,
		checkpoints: checkpoints,
		cfg:         cfg,
		tz:          tz,
	}
}

// Start launches the polling loop with an immediate first poll.
func (c *PhotoCollector) Start(ctx context.Context) {
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
	logger.Info("photo collector started", "interval", c.cfg.PhotoInterval)
}

// Stop cancels the polling loop and clears the error state.
func (c *PhotoCollector) Stop() {
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

func (c *PhotoCollector) loop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PhotoInterval)
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

// poll ingests assets created since local midnight, bounded per cycle.
// Capability is re-checked every poll so a mid-session revocation surfaces as
// an error without killing the loop.
func (c *PhotoCollector) poll(ctx context.Context) {
	granted, err := c.gate.Ensure(ctx, device.KindPhotos)
	if err != nil {
		c.softErr(err.Error())
		return
	}
	if !granted {
		c.softErr(photosDeniedMsg)
		return
	}

	midnight := startOfDay(time.Now(), c.tz)
	assets, err := c.library.AssetsSince(ctx, midnight, c.cfg.PhotoMaxPerPoll)
	if err != nil {
		c.softErr(err.Error())
		logger.Warn("photo library query failed", "error", err)
		return
	}

	if len(assets) == 0 {
		c.clearErr()
		return
	}

	if !c.store.Online(ctx) {
		logger.Debug("offline, skipping photo poll", "assets", len(assets))
		return
	}

	rows := make([]store.PhotoRow, len(assets))
	for i, a := range assets {
		row := store.PhotoRow{
			FileURI:   a.URI,
			Timestamp: a.CreatedAt,
			Caption:   a.Caption,
		}
		if a.HasLocation {
			// best-effort, a failed lookup leaves the place null
			if place, err := c.geocoder.Reverse(ctx, a.Latitude, a.Longitude); err == nil && place != "" {
				row.Place = &place
			}
		}
		rows[i] = row
	}

	if err := c.store.UpsertPhotos(ctx, rows); err != nil {
		c.softErr(err.Error())
		logger.Warn("photo upsert failed", "count", len(rows), "error", err)
		return
	}

	c.mirror(ctx, assets)

	c.clearErr()
	if err := c.checkpoints.Mark("photos", time.Now()); err != nil {
		logger.Debug("checkpoint write failed", "source", "photos", "error", err)
	}
	logger.Debug("photos ingested", "count", len(rows))
}

func (c *PhotoCollector) mirror(ctx context.Context, assets []device.PhotoAsset) {
	if c.blob == nil {
		return
	}

	for _, a := range assets {
		data, contentType, err := c.library.Read(ctx, a.URI)
		if err != nil {
			logger.Debug("photo read failed", "uri", a.URI, "error", err)
			continue
		}
		if err := c.blob.MirrorPhoto(ctx, a.URI, data, contentType); err != nil {
			logger.Debug("photo mirror failed", "uri", a.URI, "error", err)
		}
	}
}
