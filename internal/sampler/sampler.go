// Package sampler reads process, CPU and memory state from the host.
package sampler

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Process is one entry of a process snapshot.
type Process struct {
	PID  int32
	Name string
}

// Sampler is the host capability the producers depend on.
type Sampler interface {
	Processes(ctx context.Context) ([]Process, error)
	// CPUPercent returns global CPU usage since the previous call.
	CPUPercent(ctx context.Context) (float64, error)
	// MemoryPercent returns used memory as a percentage of total.
	MemoryPercent(ctx context.Context) (float64, error)
}

// System samples the local host through gopsutil.
type System struct{}

func NewSystem() *System { return &System{} }

// Processes lists running processes. Processes that exit or deny access
// while being inspected are skipped.
func (s *System) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		out = append(out, Process{PID: p.Pid, Name: name})
	}
	return out, nil
}

func (s *System) CPUPercent(ctx context.Context) (float64, error) {
	// interval 0 compares against the previous call.
	p, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("reading cpu usage: %w", err)
	}
	if len(p) == 0 {
		return 0, fmt.Errorf("reading cpu usage: no data")
	}
	return p[0], nil
}

func (s *System) MemoryPercent(ctx context.Context) (float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading memory usage: %w", err)
	}
	if v.Total == 0 {
		return 0, nil
	}
	return float64(v.Used) / float64(v.Total) * 100, nil
}
