// Package digest sends a scheduled end-of-day summary through the
// conversation surface.
package digest

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bowerhall/daylog/internal/engine"
	"github.com/bowerhall/daylog/internal/logger"
)

const digestQuery = "Summarize my day so far: where I went, what was on my calendar and what photos I took. Keep it short and friendly."

// Asker runs one engine turn.
type Asker interface {
	Ask(ctx context.Context, turn engine.Turn) (engine.Response, error)
}

// NotifyFunc delivers the digest text to the user's chat.
type NotifyFunc func(message string) error

// Runner fires the digest on a cron schedule. The loop ticks every 30
// seconds and compares against the precomputed next run, so a missed tick
// only delays a digest, never drops it.
type Runner struct {
	engine   Asker
	notify   NotifyFunc
	schedule cron.Schedule
	timezone *time.Location
}

func NewRunner(scheduleExpr string, eng Asker, notify NotifyFunc, tz *time.Location) (*Runner, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(scheduleExpr)
	if err != nil {
		return nil, err
	}

	return &Runner{
		engine:   eng,
		notify:   notify,
		schedule: schedule,
		timezone: tz,
	}, nil
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	next := r.schedule.Next(time.Now().In(r.timezone))
	logger.Info("digest scheduled", "next", next)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("digest runner stopping")
			return
		case <-ticker.C:
			now := time.Now().In(r.timezone)
			if now.Before(next) {
				continue
			}
			r.fire(ctx)
			next = r.schedule.Next(now)
			logger.Debug("digest next run scheduled", "next", next)
		}
	}
}

func (r *Runner) fire(ctx context.Context) {
	resp, err := r.engine.Ask(ctx, engine.Turn{Query: digestQuery})
	if err != nil {
		logger.Error("digest turn failed", "error", err)
		return
	}

	if err := r.notify(resp.Text); err != nil {
		logger.Error("digest send failed", "error", err)
		return
	}

	logger.Info("digest sent", "chars", len(resp.Text))
}
