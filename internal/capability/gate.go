// Package capability wraps the OS permission systems behind a uniform
// grant/deny contract. The gate prompts at most once per kind per process
// session: an explicit denial is remembered and never silently re-prompted.
package capability

import (
	"context"
	"sync"

	"github.com/bowerhall/daylog/internal/device"
	"github.com/bowerhall/daylog/internal/logger"
)

type Gate struct {
	mu     sync.Mutex
	perms  device.Permissions
	denied map[device.Kind]bool
	// background request is attempted once per session
	backgroundAsked   bool
	backgroundGranted bool
}

func NewGate(perms device.Permissions) *Gate {
	return &Gate{
		perms:  perms,
		denied: make(map[device.Kind]bool),
	}
}

// Status reports the current permission state without prompting.
func (g *Gate) Status(kind device.Kind) device.PermissionStatus {
	return g.perms.Status(kind)
}

// Ensure returns true when the capability is granted, prompting the user if
// the state is still undetermined. A denial, pre-existing or just answered,
// is remembered for the rest of the session.
func (g *Gate) Ensure(ctx context.Context, kind device.Kind) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.denied[kind] {
		return false, nil
	}

	switch g.perms.Status(kind) {
	case device.PermissionGranted:
		return true, nil
	case device.PermissionDenied:
		g.denied[kind] = true
		return false, nil
	}

	status, err := g.perms.Request(ctx, kind)
	if err != nil {
		return false, err
	}

	if status != device.PermissionGranted {
		g.denied[kind] = true
		logger.Info("capability denied", "kind", kind)
		return false, nil
	}

	return true, nil
}

// EnsureLocation acquires the foreground location capability and then makes
// a single best-effort request for background access. Background denial is
// non-fatal: sampling degrades to foreground-only.
func (g *Gate) EnsureLocation(ctx context.Context) (foreground, background bool, err error) {
	ok, err := g.Ensure(ctx, device.KindLocation)
	if err != nil || !ok {
		return false, false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.backgroundAsked {
		g.backgroundAsked = true
		status, err := g.perms.RequestBackground(ctx)
		if err != nil {
			logger.Warn("background location request failed", "error", err)
		} else {
			g.backgroundGranted = status == device.PermissionGranted
			if !g.backgroundGranted {
				logger.Info("background location denied, foreground-only sampling")
			}
		}
	}

	return true, g.backgroundGranted, nil
}
