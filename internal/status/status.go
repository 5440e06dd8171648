// Package status renders the /status report: collector freshness, sync
// state and a host resource snapshot.
package status

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bowerhall/daylog/internal/collector"
)

// Coordinator is the slice of the collection coordinator the report reads.
type Coordinator interface {
	Enabled() bool
	States() []collector.State
	Err() string
}

// SyncState reports the conversation sync health.
type SyncState interface {
	Offline() bool
}

type Reporter struct {
	coordinator Coordinator
	sync        SyncState
	checkpoints *collector.Checkpoints
}

func NewReporter(coordinator Coordinator, sync SyncState, checkpoints *collector.Checkpoints) *Reporter {
	return &Reporter{coordinator: coordinator, sync: sync, checkpoints: checkpoints}
}

// Report builds the human-readable status message.
func (r *Reporter) Report() string {
	var b strings.Builder

	b.WriteString("Collection: ")
	if r.coordinator.Enabled() {
		b.WriteString("on\n")
	} else {
		b.WriteString("off\n")
	}

	names := []string{"location", "photos", "calendar"}
	states := r.coordinator.States()
	for i, s := range states {
		if i >= len(names) {
			break
		}
		fmt.Fprintf(&b, "  %s: %s", names[i], s)
		if last, ok, err := r.checkpoints.Last(names[i]); err == nil && ok {
			fmt.Fprintf(&b, " (last poll %s ago)", time.Since(last).Round(time.Minute))
		}
		b.WriteString("\n")
	}

	if msg := r.coordinator.Err(); msg != "" {
		fmt.Fprintf(&b, "Errors: %s\n", msg)
	}

	b.WriteString("Sync: ")
	if r.sync.Offline() {
		b.WriteString("offline, will sync when online\n")
	} else {
		b.WriteString("online\n")
	}

	b.WriteString("\n")
	b.WriteString(hostSnapshot())

	return b.String()
}

func hostSnapshot() string {
	var b strings.Builder

	hostname, _ := os.Hostname()
	fmt.Fprintf(&b, "Host: %s (%s/%s)\n", hostname, runtime.GOOS, runtime.GOARCH)

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		fmt.Fprintf(&b, "CPU: %.1f%%\n", cpuPercent[0])
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(&b, "Memory: %s / %s (%.1f%%)\n",
			formatBytes(memInfo.Used), formatBytes(memInfo.Total), memInfo.UsedPercent)
	}

	if diskInfo, err := disk.Usage("/"); err == nil {
		fmt.Fprintf(&b, "Disk: %s free of %s\n",
			formatBytes(diskInfo.Free), formatBytes(diskInfo.Total))
	}

	return b.String()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
