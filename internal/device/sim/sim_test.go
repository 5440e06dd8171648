package sim

import (
	"context"
	"testing"
	"time"

	"github.com/bowerhall/daylog/internal/device"
)

func TestLoadFixture(t *testing.T) {
	d, err := Load("testdata/device.yml")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if d.Status(device.KindLocation) != device.PermissionGranted {
		t.Errorf("location permission: %s", d.Status(device.KindLocation))
	}
	if d.Status(device.KindCalendar) != device.PermissionUndetermined {
		t.Errorf("calendar permission: %s", d.Status(device.KindCalendar))
	}
	if !d.Foreground() {
		t.Error("fixture sets foreground true")
	}

	pos, err := d.Current(context.Background())
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if pos.Latitude != 48.8566 {
		t.Errorf("first position latitude: %v", pos.Latitude)
	}

	label, err := d.Reverse(context.Background(), 48.8606, 2.3376)
	if err != nil || label != "Louvre, Paris" {
		t.Errorf("reverse geocode: %q (err %v)", label, err)
	}
}

func TestLoadFixtureBackgroundDenialSticks(t *testing.T) {
	d, err := Load("testdata/device.yml")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	status, err := d.RequestBackground(context.Background())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if status != device.PermissionDenied {
		t.Errorf("fixture denial must stick through a prompt, got %s", status)
	}
}

func TestPositionReplayHoldsLastFix(t *testing.T) {
	d := New()
	d.PushPosition(device.Position{Latitude: 1})
	d.PushPosition(device.Position{Latitude: 2})

	ctx := context.Background()
	for _, want := range []float64{1, 2, 2} {
		pos, err := d.Current(ctx)
		if err != nil {
			t.Fatalf("current failed: %v", err)
		}
		if pos.Latitude != want {
			t.Errorf("expected latitude %v, got %v", want, pos.Latitude)
		}
	}
}

func TestAssetsSinceOrdersAndCaps(t *testing.T) {
	now := time.Now()
	d := New()
	d.AddPhoto(device.PhotoAsset{URI: "ph://b", CreatedAt: now.Add(2 * time.Minute)}, nil)
	d.AddPhoto(device.PhotoAsset{URI: "ph://a", CreatedAt: now.Add(time.Minute)}, nil)
	d.AddPhoto(device.PhotoAsset{URI: "ph://c", CreatedAt: now.Add(3 * time.Minute)}, nil)

	assets, err := d.AssetsSince(context.Background(), now, 2)
	if err != nil {
		t.Fatalf("assets failed: %v", err)
	}
	if len(assets) != 2 || assets[0].URI != "ph://a" || assets[1].URI != "ph://b" {
		t.Errorf("expected oldest-first capped list, got %v", assets)
	}
}
