// Package procinfo reports details about a running process for status output.
package procinfo

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Info describes a live process.
type Info struct {
	PID       int
	Cmdline   string
	StartedAt time.Time
	RSS       uint64
	Threads   int32
}

// Uptime returns how long the process has been running at now.
func (i *Info) Uptime(now time.Time) time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(i.StartedAt).Truncate(time.Second)
}

// MemoryMB returns the resident set size in megabytes.
func (i *Info) MemoryMB() float64 {
	return float64(i.RSS) / 1024 / 1024
}

// Describe collects Info for pid. Fields the platform cannot report are left
// zero; only a missing process is an error.
func Describe(pid int) (*Info, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	info := &Info{PID: pid}
	if args, err := p.CmdlineSlice(); err == nil {
		info.Cmdline = strings.Join(args, " ")
	}
	if ms, err := p.CreateTime(); err == nil && ms > 0 {
		info.StartedAt = time.UnixMilli(ms)
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		info.RSS = mem.RSS
	}
	if n, err := p.NumThreads(); err == nil {
		info.Threads = n
	}
	return info, nil
}
