package gfx

import (
	"fmt"
	"time"

	"github.com/ColinIanKing/intel-lpmd/pkg/types"
)

// Model-specific registers used by the fallback path.
const (
	msrTSC             = 0x10  // free-running timestamp counter
	msrPkgAnyGfxeC0Res = 0x65A // package graphics-engine C0 residency
)

// MSRReader reads one model-specific register on a given core.
type MSRReader interface {
	Read(cpu int, msr int64) (uint64, error)
}

// msrSource computes gfx utilization as the C0-residency share of the
// TSC delta, both read on whichever core the caller is scheduled on.
type msrSource struct {
	rd    MSRReader
	cpuFn func() (int, error)

	prevTSC uint64
	prevVal uint64
	warm    bool
}

func newMSRSource(rd MSRReader, cpuFn func() (int, error)) *msrSource {
	return &msrSource{rd: rd, cpuFn: cpuFn}
}

// Sample implements Source. Like the sysfs path it needs two samples
// before producing a value.
func (m *msrSource) Sample(_ time.Time) (types.Percent, error) {
	cpu, err := m.cpuFn()
	if err != nil {
		return types.Unavailable, fmt.Errorf("gfx: current cpu: %w", err)
	}
	tsc, err := m.rd.Read(cpu, msrTSC)
	if err != nil {
		return types.Unavailable, fmt.Errorf("gfx: read tsc: %w", err)
	}
	val, err := m.rd.Read(cpu, msrPkgAnyGfxeC0Res)
	if err != nil {
		return types.Unavailable, fmt.Errorf("gfx: read c0 residency: %w", err)
	}

	if !m.warm {
		m.prevTSC, m.prevVal, m.warm = tsc, val, true
		return types.Unavailable, nil
	}

	dt := deltaU64(tsc, m.prevTSC)
	dv := deltaU64(val, m.prevVal)
	m.prevTSC, m.prevVal = tsc, val
	if dt == 0 {
		return types.Unavailable, nil
	}
	return types.Percent(dv * 10000 / dt), nil
}
