// Package stats implements the System Stats Collaborator (C8): uptime,
// memory and per-interface network counters read fresh from /proc on every
// call, ported from original_source's sysstat.c with no caching and no
// polling, matching its re-read-on-every-request behaviour.
package stats

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInterfaceNotFound is returned by NetStats when the named interface
// has no line in /proc/net/dev.
var ErrInterfaceNotFound = errors.New("stats: interface not found")

// Paths are variables, not constants, so tests can point them at fixture
// files instead of the real /proc.
var (
	uptimePathVar  = "/proc/uptime"
	meminfoPathVar = "/proc/meminfo"
	netDevPathVar  = "/proc/net/dev"
)

// MemStats mirrors the three fields original_source's sysstat.c pulls out
// of /proc/meminfo, in kB as the kernel reports them.
type MemStats struct {
	TotalKB     uint64
	FreeKB      uint64
	AvailableKB uint64
}

// NetStats is one interface's RX/TX byte and packet counters.
type NetStats struct {
	RXBytes   uint64
	RXPackets uint64
	TXBytes   uint64
	TXPackets uint64
}

// Collector reads live system statistics. It carries no state: every call
// opens and parses its /proc file fresh.
type Collector struct{}

// New returns a ready Collector.
func New() *Collector { return &Collector{} }

// Uptime returns the system uptime, the first field of /proc/uptime.
func (c *Collector) Uptime() (time.Duration, error) {
	f, err := os.Open(uptimePathVar)
	if err != nil {
		return 0, errors.Wrap(err, "stats: open /proc/uptime")
	}
	defer f.Close()

	var first string
	if _, err := fscanFirstField(f, &first); err != nil {
		return 0, errors.Wrap(err, "stats: read /proc/uptime")
	}
	seconds, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return 0, errors.Wrap(err, "stats: parse /proc/uptime")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// MemInfo parses MemTotal, MemFree and MemAvailable out of /proc/meminfo.
func (c *Collector) MemInfo() (MemStats, error) {
	f, err := os.Open(meminfoPathVar)
	if err != nil {
		return MemStats{}, errors.Wrap(err, "stats: open /proc/meminfo")
	}
	defer f.Close()

	want := map[string]*uint64{}
	var m MemStats
	want["MemTotal:"] = &m.TotalKB
	want["MemFree:"] = &m.FreeKB
	want["MemAvailable:"] = &m.AvailableKB

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		dst, ok := want[fields[0]]
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return MemStats{}, errors.Wrapf(err, "stats: parse %s", fields[0])
		}
		*dst = v
	}
	if err := sc.Err(); err != nil {
		return MemStats{}, errors.Wrap(err, "stats: read /proc/meminfo")
	}
	return m, nil
}

// NetStats parses the RX/TX byte and packet counters for iface out of
// /proc/net/dev. The column layout there is, after the interface name:
// rx_bytes rx_packets rx_errs rx_drop rx_fifo rx_frame rx_compressed
// rx_multicast tx_bytes tx_packets ...
func (c *Collector) NetStats(iface string) (NetStats, error) {
	f, err := os.Open(netDevPathVar)
	if err != nil {
		return NetStats{}, errors.Wrap(err, "stats: open /proc/net/dev")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 10 {
			return NetStats{}, errors.Wrapf(ErrInterfaceNotFound, "malformed /proc/net/dev line for %s", iface)
		}
		rxBytes, err1 := strconv.ParseUint(fields[0], 10, 64)
		rxPackets, err2 := strconv.ParseUint(fields[1], 10, 64)
		txBytes, err3 := strconv.ParseUint(fields[8], 10, 64)
		txPackets, err4 := strconv.ParseUint(fields[9], 10, 64)
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return NetStats{}, errors.Wrapf(err, "stats: parse /proc/net/dev counters for %s", iface)
			}
		}
		return NetStats{RXBytes: rxBytes, RXPackets: rxPackets, TXBytes: txBytes, TXPackets: txPackets}, nil
	}
	if err := sc.Err(); err != nil {
		return NetStats{}, errors.Wrap(err, "stats: read /proc/net/dev")
	}
	return NetStats{}, errors.Wrapf(ErrInterfaceNotFound, "interface %q", iface)
}

// fscanFirstField reads the first whitespace-delimited token from f.
func fscanFirstField(f *os.File, out *string) (int, error) {
	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("stats: empty file")
	}
	*out = sc.Text()
	return 1, nil
}
