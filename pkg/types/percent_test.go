package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent_String_FixedPoint(t *testing.T) {
	cases := []struct {
		in   Percent
		want string
	}{
		{Percent(0), "0.00"},
		{Percent(1), "0.01"},
		{Percent(99), "0.99"},
		{Percent(100), "1.00"},
		{Percent(3750), "37.50"},
		{Percent(9901), "99.01"},
		{Full, "100.00"},
		{Unavailable, "na"},
		{Percent(-5), "na"},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d_%d", i, int(tc.in)), func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.String())
		})
	}
}

func TestPercent_Available(t *testing.T) {
	assert.True(t, Percent(0).Available())
	assert.True(t, Full.Available())
	assert.False(t, Unavailable.Available())
}

func TestPercent_Float(t *testing.T) {
	assert.InDelta(t, 37.5, Percent(3750).Float(), 1e-12)
	assert.InDelta(t, 100.0, Full.Float(), 1e-12)
	assert.InDelta(t, 0.01, Percent(1).Float(), 1e-12)
	assert.Equal(t, -1.0, Unavailable.Float())
}
