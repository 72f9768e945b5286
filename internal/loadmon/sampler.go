package loadmon

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sampler reads instantaneous utilisation percentages (0-100).
type Sampler interface {
	Sample(ctx context.Context) (cpuPercent, memPercent float64, err error)
}

// HostSampler reads the local host through gopsutil. A zero Window measures
// CPU time since the previous call.
type HostSampler struct {
	Window time.Duration
}

// Sample implements Sampler.
func (s HostSampler) Sample(ctx context.Context) (float64, float64, error) {
	percents, err := cpu.PercentWithContext(ctx, s.Window, false)
	if err != nil {
		return 0, 0, fmt.Errorf("sample cpu: %w", err)
	}
	if len(percents) == 0 {
		return 0, 0, fmt.Errorf("sample cpu: no readings")
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sample memory: %w", err)
	}
	return percents[0], vm.UsedPercent, nil
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) (float64, float64, error)

// Sample implements Sampler.
func (f SamplerFunc) Sample(ctx context.Context) (float64, float64, error) {
	return f(ctx)
}
