package monitor

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColinIanKing/intel-lpmd/pkg/config"
	"github.com/ColinIanKing/intel-lpmd/pkg/types"
)

type stubCPU struct {
	bsys, bcpu types.Percent
	err        error
}

func (s *stubCPU) Sample() (types.Percent, types.Percent, error) {
	return s.bsys, s.bcpu, s.err
}

type stubGfx struct {
	v types.Percent
}

func (s *stubGfx) Sample() types.Percent { return s.v }

type tickRecorder struct {
	ticks []Summary
}

func (r *tickRecorder) ObserveTick(s Summary) { r.ticks = append(r.ticks, s) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func simpleConfig() *config.Config {
	return &config.Config{
		UtilEntryThreshold: 5,
		UtilExitThreshold:  95,
		MonitorEnabled:     true,
	}
}

func profileConfig(states ...*config.State) *config.Config {
	cfg := &config.Config{MonitorEnabled: true, States: states}
	cfg.Validate(quietLogger())
	return cfg
}

func TestMonitor_DisabledReturnsBlockForever(t *testing.T) {
	cfg := simpleConfig()
	cfg.MonitorEnabled = false
	m := New(cfg, &stubCPU{}, nil, &fakeActuator{}, quietLogger())

	assert.Equal(t, BlockForever, m.Tick(-1))
}

func TestMonitor_FirstRoundNeverTransitions(t *testing.T) {
	act := &fakeActuator{}
	m := New(simpleConfig(), &stubCPU{bsys: 0, bcpu: 0}, nil, act, quietLogger())

	// The warm-up round's deltas span the whole uptime, so a fully
	// idle reading must not enter low power yet.
	m.Tick(-1)
	assert.Equal(t, 0, act.enters)

	interval := m.Tick(-1)
	assert.Equal(t, 1, act.enters)
	assert.Equal(t, config.DefaultPollMS, interval)
}

func TestMonitor_LowPowerLifecycle(t *testing.T) {
	cpu := &stubCPU{bsys: 5000, bcpu: 6000}
	act := &fakeActuator{}
	m := New(simpleConfig(), cpu, nil, act, quietLogger())

	m.Tick(-1) // warm-up
	m.Tick(-1) // normal load, no transition
	assert.Equal(t, 0, act.enters)

	cpu.bsys, cpu.bcpu = 300, 400
	m.Tick(-1)
	require.Equal(t, 1, act.enters)
	assert.True(t, act.inLPM)

	// Entering resets the warm-up flag: the next round is forced
	// normal no matter how loaded the system looks.
	cpu.bsys, cpu.bcpu = 9900, 9900
	m.Tick(-1)
	assert.Equal(t, 0, act.exits)

	m.Tick(-1)
	assert.Equal(t, 1, act.exits)
	assert.False(t, act.inLPM)
}

func TestMonitor_AdaptiveExitIntervalFloors(t *testing.T) {
	cfg := simpleConfig()
	cfg.UtilExitThreshold = 100
	cpu := &stubCPU{bsys: 5000, bcpu: 4567}
	m := New(cfg, cpu, nil, &fakeActuator{inLPM: true}, quietLogger())

	// Warm-up round in low power sticks to the default interval.
	assert.Equal(t, config.DefaultPollMS, m.Tick(-1))

	// 1000 * (10000-4567) / 10000 = 543, floored to the 100ms grid.
	assert.Equal(t, 500, m.Tick(-1))

	// A near-saturated CPU still polls at least every 100ms.
	cpu.bcpu = 9990
	assert.Equal(t, 100, m.Tick(-1))
}

func TestMonitor_FixedIntervalsWin(t *testing.T) {
	cfg := simpleConfig()
	cfg.UtilEntryInterval = 750
	cpu := &stubCPU{bsys: 5000, bcpu: 6000}
	m := New(cfg, cpu, nil, &fakeActuator{}, quietLogger())

	// Configured intervals are returned as-is, no grid flooring.
	assert.Equal(t, 750, m.Tick(-1))
	assert.Equal(t, 750, m.Tick(-1))

	cfg.UtilExitInterval = 730
	m2 := New(cfg, cpu, nil, &fakeActuator{inLPM: true}, quietLogger())
	assert.Equal(t, 730, m2.Tick(-1))
}

func TestMonitor_SamplerFailureDegrades(t *testing.T) {
	cpu := &stubCPU{err: errors.New("proc went away")}
	act := &fakeActuator{}
	m := New(simpleConfig(), cpu, nil, act, quietLogger())

	m.Tick(-1)
	m.Tick(-1)

	bsys, bcpu, bgfx := m.Last()
	assert.Equal(t, types.Unavailable, bsys)
	assert.Equal(t, types.Unavailable, bcpu)
	assert.Equal(t, types.Unavailable, bgfx)
	assert.Equal(t, 0, act.enters, "unavailable readings never transition")
}

func TestMonitor_ObserverSeesSimpleTicks(t *testing.T) {
	cpu := &stubCPU{bsys: 5000, bcpu: 6000}
	rec := &tickRecorder{}
	m := New(simpleConfig(), cpu, &stubGfx{v: types.Percent(1200)}, &fakeActuator{}, quietLogger())
	m.SetObserver(rec)

	m.Tick(-1)
	cpu.bsys, cpu.bcpu = 200, 300
	m.Tick(-1)

	require.Len(t, rec.ticks, 2)
	assert.Equal(t, "normal", rec.ticks[0].StateName)
	assert.Equal(t, "idle", rec.ticks[1].StateName)
	assert.Equal(t, types.Percent(200), rec.ticks[1].BusySys)
	assert.Equal(t, types.Percent(1200), rec.ticks[1].BusyGfx)
	assert.Equal(t, -1, rec.ticks[1].EPP)
}

func TestMonitor_ProfileAdvance(t *testing.T) {
	deep := &config.State{ID: 1, Name: "deep", WLTType: -1, EnterCPULoadThres: 40, EPP: 3}
	fallback := &config.State{ID: 2, Name: "fallback", WLTType: -1, EPP: 0}
	cfg := profileConfig(deep, fallback)
	require.True(t, cfg.ProfilesEnabled())

	act := &fakeActuator{}
	rec := &tickRecorder{}
	m := New(cfg, &stubCPU{bsys: 2000, bcpu: 3000}, nil, act, quietLogger())
	m.SetObserver(rec)

	interval := m.Tick(-1)
	assert.Equal(t, config.DefaultPollMS, interval)
	assert.Equal(t, 3, act.epp)

	require.Len(t, rec.ticks, 1)
	assert.Equal(t, 1, rec.ticks[0].StateID)
	assert.Equal(t, 2, rec.ticks[0].StateCount)
	assert.Equal(t, "deep", rec.ticks[0].StateName)
	assert.Equal(t, interval, rec.ticks[0].IntervalMS)
}

func TestMonitor_WLTHintWithoutPollingBlocks(t *testing.T) {
	hinted := &config.State{ID: 1, Name: "hinted", WLTType: 2, EPP: 7}
	generic := &config.State{ID: 2, Name: "generic", WLTType: -1}
	cfg := profileConfig(hinted, generic)

	act := &fakeActuator{}
	m := New(cfg, &stubCPU{}, nil, act, quietLogger())

	assert.Equal(t, BlockForever, m.Tick(2))
	assert.Equal(t, 7, act.epp, "the hinted profile still actuates")
}

func TestMonitor_WLTHintWithPollingKeepsSampling(t *testing.T) {
	hinted := &config.State{ID: 1, Name: "hinted", WLTType: 2}
	generic := &config.State{ID: 2, Name: "generic", WLTType: -1}
	cfg := profileConfig(hinted, generic)
	cfg.WLTHintPollEnable = true

	m := New(cfg, &stubCPU{}, &stubGfx{v: types.Percent(700)}, &fakeActuator{}, quietLogger())

	interval := m.Tick(2)
	assert.NotEqual(t, BlockForever, interval)

	_, _, bgfx := m.Last()
	assert.Equal(t, types.Percent(700), bgfx)
}

func TestMonitor_ResetRestoresColdStart(t *testing.T) {
	cpu := &stubCPU{bsys: 200, bcpu: 300}
	act := &fakeActuator{}
	m := New(simpleConfig(), cpu, nil, act, quietLogger())

	m.Tick(-1)
	m.Tick(-1)
	require.Equal(t, 1, act.enters)

	act.inLPM = false
	m.Reset()

	bsys, bcpu, _ := m.Last()
	assert.Equal(t, types.Unavailable, bsys)
	assert.Equal(t, types.Unavailable, bcpu)

	// Post-reset the first round is a warm-up again.
	m.Tick(-1)
	assert.Equal(t, 1, act.enters)
	m.Tick(-1)
	assert.Equal(t, 2, act.enters)
}
