package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestHysteresis_DisabledWhenBothThresholdsZero(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	h := newHysteresis(0, 0, clk.now, nil)
	assert.True(t, h.shouldProceed(StatusIdle))
	assert.True(t, h.shouldProceed(StatusOverload))
}

func TestHysteresis_RejectedIdleInflatesAvgIn(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	h := newHysteresis(1000, 1000, clk.now, nil)

	// No time has passed since the last exit: the fresh dwell time
	// (0ms) misses the 500ms half-threshold.
	ok := h.shouldProceed(StatusIdle)
	assert.False(t, ok)
	assert.Equal(t, uint64(800), h.avgOut, "opposite average decays toward the 0ms sample")
	assert.Equal(t, uint64(1200), h.avgIn, "rejection penalty: *(N+1)/N")
}

func TestHysteresis_AcceptedIdleDecaysOppositeOnly(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	h := newHysteresis(1000, 1000, clk.now, nil)

	clk.advance(2 * time.Second)
	ok := h.shouldProceed(StatusIdle)
	assert.True(t, ok)
	// avg_out: 1000*4/5 + 2000/5 = 1200; avg_in untouched.
	assert.Equal(t, uint64(1200), h.avgOut)
	assert.Equal(t, uint64(1000), h.avgIn)
}

func TestHysteresis_RejectedOverloadInflatesAvgOut(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	h := newHysteresis(1000, 1000, clk.now, nil)

	ok := h.shouldProceed(StatusOverload)
	assert.False(t, ok)
	assert.Equal(t, uint64(800), h.avgIn)
	assert.Equal(t, uint64(1200), h.avgOut)
}

func TestHysteresis_NormalNeverTransitions(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	h := newHysteresis(1000, 1000, clk.now, nil)
	clk.advance(time.Hour)
	assert.False(t, h.shouldProceed(StatusNormal))
	assert.False(t, h.shouldProceed(StatusUnknown))
}

func TestHysteresis_MarksMoveDwellOrigins(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	h := newHysteresis(1000, 1000, clk.now, nil)

	clk.advance(10 * time.Second)
	h.markOut()
	// Exit just happened: an idle candidate sees a 0ms fresh dwell
	// again and is rejected despite the long uptime before it.
	assert.False(t, h.shouldProceed(StatusIdle))
}
