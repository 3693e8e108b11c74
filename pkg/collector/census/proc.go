package census

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/srodi/loadreaper/pkg/types"
)

// procReader is the part of *process.Process the lister reads.
type procReader interface {
	NameWithContext(ctx context.Context) (string, error)
	CPUPercentWithContext(ctx context.Context) (float64, error)
	PpidWithContext(ctx context.Context) (int32, error)
	MemoryInfoWithContext(ctx context.Context) (*process.MemoryInfoStat, error)
}

type procEntry struct {
	pid    int32
	reader procReader
}

// processes enumerates the process table; tests replace it.
var processes = func(ctx context.Context) ([]procEntry, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]procEntry, 0, len(procs))
	for _, p := range procs {
		if p != nil {
			entries = append(entries, procEntry{pid: p.Pid, reader: p})
		}
	}
	return entries, nil
}

// ProcLister reads the process table through gopsutil instead of spawning ps.
type ProcLister struct{}

// NewProcLister returns the gopsutil-backed lister.
func NewProcLister() *ProcLister {
	return &ProcLister{}
}

// List snapshots every process. Processes that exit while being read are skipped.
func (ProcLister) List(ctx context.Context) ([]types.ProcessInfo, error) {
	procs, err := processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListerUnavailable, err)
	}

	rows := make([]types.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if p.pid <= 0 || p.reader == nil {
			continue
		}
		name, err := p.reader.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpu, err := p.reader.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		ppid, err := p.reader.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		var vszKiB uint64
		if mem, err := p.reader.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			vszKiB = mem.VMS / 1024
		}
		rows = append(rows, types.ProcessInfo{
			PID:        int(p.pid),
			PPID:       int(ppid),
			CPUPercent: cpu,
			VSZKiB:     vszKiB,
			Comm:       name,
		})
	}
	return rows, nil
}
