package capability

import (
	"context"
	"testing"

	"github.com/bowerhall/daylog/internal/device"
	"github.com/bowerhall/daylog/internal/device/sim"
)

func TestEnsurePromptsOnce(t *testing.T) {
	dev := sim.New()
	gate := NewGate(dev)

	ok, err := gate.Ensure(context.Background(), device.KindPhotos)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if !ok {
		t.Fatal("expected grant after prompt")
	}
	if dev.Requests() != 1 {
		t.Errorf("expected 1 prompt, got %d", dev.Requests())
	}

	// already granted, no further prompt
	ok, _ = gate.Ensure(context.Background(), device.KindPhotos)
	if !ok {
		t.Fatal("expected grant to stick")
	}
	if dev.Requests() != 1 {
		t.Errorf("expected no re-prompt, got %d prompts", dev.Requests())
	}
}

func TestEnsureNeverRepromptsAfterDenial(t *testing.T) {
	dev := sim.New()
	dev.SetPermission(device.KindCalendar, device.PermissionDenied)
	gate := NewGate(dev)

	for i := 0; i < 3; i++ {
		ok, err := gate.Ensure(context.Background(), device.KindCalendar)
		if err != nil {
			t.Fatalf("ensure failed: %v", err)
		}
		if ok {
			t.Fatal("expected denial")
		}
	}

	if dev.Requests() != 0 {
		t.Errorf("denied capability must not prompt, got %d prompts", dev.Requests())
	}
}

func TestEnsureLocationBackgroundDegrade(t *testing.T) {
	dev := sim.New()
	dev.SetBackgroundPermission(device.PermissionDenied)
	gate := NewGate(dev)

	fg, bg, err := gate.EnsureLocation(context.Background())
	if err != nil {
		t.Fatalf("ensure location failed: %v", err)
	}
	if !fg {
		t.Fatal("expected foreground grant")
	}
	if bg {
		t.Error("expected background denial to degrade, not grant")
	}

	// background is asked at most once per session
	prompts := dev.Requests()
	gate.EnsureLocation(context.Background())
	if dev.Requests() != prompts {
		t.Errorf("background request repeated: %d -> %d", prompts, dev.Requests())
	}
}

func TestEnsureLocationForegroundDenied(t *testing.T) {
	dev := sim.New()
	dev.SetPermission(device.KindLocation, device.PermissionDenied)
	gate := NewGate(dev)

	fg, bg, err := gate.EnsureLocation(context.Background())
	if err != nil {
		t.Fatalf("ensure location failed: %v", err)
	}
	if fg || bg {
		t.Error("expected full denial")
	}
	if dev.Requests() != 0 {
		t.Errorf("denied foreground must not trigger background prompt, got %d", dev.Requests())
	}
}
