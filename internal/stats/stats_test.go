package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// withProcFile points path at a temp file with content, restoring path's
// previous value on cleanup. Used instead of touching the real /proc so
// these tests run on any host, including CI containers without /proc/net/dev
// entries for arbitrary interface names.
func withProcFile(t *testing.T, path *string, content string) {
	t.Helper()
	dir := t.TempDir()
	f := filepath.Join(dir, "fake")
	if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	prev := *path
	*path = f
	t.Cleanup(func() { *path = prev })
}

func TestUptime(t *testing.T) {
	withProcFile(t, &uptimePathVar, "12345.67 54321.00\n")
	c := New()

	got, err := c.Uptime()
	if err != nil {
		t.Fatalf("Uptime() error = %v", err)
	}
	want := time.Duration(12345.67 * float64(time.Second))
	if got != want {
		t.Fatalf("Uptime() = %v, want %v", got, want)
	}
}

func TestMemInfo(t *testing.T) {
	withProcFile(t, &meminfoPathVar, "MemTotal:        8048868 kB\n"+
		"MemFree:         1234567 kB\n"+
		"MemAvailable:    4567890 kB\n"+
		"Buffers:           12345 kB\n")
	c := New()

	got, err := c.MemInfo()
	if err != nil {
		t.Fatalf("MemInfo() error = %v", err)
	}
	want := MemStats{TotalKB: 8048868, FreeKB: 1234567, AvailableKB: 4567890}
	if got != want {
		t.Fatalf("MemInfo() = %+v, want %+v", got, want)
	}
}

func TestNetStatsFound(t *testing.T) {
	withProcFile(t, &netDevPathVar, "Inter-|   Receive                                                |  Transmit\n"+
		" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n"+
		"    lo:  123456     100    0    0    0     0          0         0    65432      80    0    0    0     0       0          0\n"+
		"  eth0:  999000     900    0    0    0     0          0         0   555000     600    0    0    0     0       0          0\n")
	c := New()

	got, err := c.NetStats("eth0")
	if err != nil {
		t.Fatalf("NetStats() error = %v", err)
	}
	want := NetStats{RXBytes: 999000, RXPackets: 900, TXBytes: 555000, TXPackets: 600}
	if got != want {
		t.Fatalf("NetStats() = %+v, want %+v", got, want)
	}
}

func TestNetStatsNotFound(t *testing.T) {
	withProcFile(t, &netDevPathVar, " face |bytes packets\n    lo:  1 1\n")
	c := New()

	if _, err := c.NetStats("wlan0"); err == nil {
		t.Fatal("NetStats() error = nil, want ErrInterfaceNotFound")
	}
}
