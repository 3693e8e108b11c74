// Package load reads the system load averages once per cycle.
package load

import (
	"context"
	"errors"
	"fmt"

	psload "github.com/shirou/gopsutil/v4/load"

	"github.com/srodi/loadreaper/pkg/types"
)

// ErrUnavailable is returned when the OS refuses to report load averages.
var ErrUnavailable = errors.New("load average unavailable")

// avgWithContext allows tests to stub the gopsutil call that reads /proc/loadavg.
var avgWithContext = psload.AvgWithContext

// Sampler produces one LoadSample per call.
type Sampler interface {
	Sample(ctx context.Context) (types.LoadSample, error)
}

// SystemSampler reads load averages from the running kernel.
type SystemSampler struct{}

// NewSampler returns the OS-backed sampler.
func NewSampler() *SystemSampler {
	return &SystemSampler{}
}

// Sample returns the current 1/5/15 minute load averages.
func (SystemSampler) Sample(ctx context.Context) (types.LoadSample, error) {
	avg, err := avgWithContext(ctx)
	if err != nil {
		return types.LoadSample{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if avg == nil {
		return types.LoadSample{}, ErrUnavailable
	}
	return types.LoadSample{One: avg.Load1, Five: avg.Load5, Fifteen: avg.Load15}, nil
}
