package gate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/perf-compare/internal/parse"
)

func mustRps(t *testing.T, v float64) parse.Rps {
	t.Helper()

	rps, err := parse.NewRps(v)
	require.NoError(t, err)
	return rps
}

func TestTooSlow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		candidate float64
		baseline  float64
		ratio     float64
		inclusive bool
		want      bool
	}{
		{"inclusive boundary exactly met passes", 90, 100, 0.90, true, false},
		{"strict boundary exactly met fails", 90, 100, 0.90, false, true},
		{"inclusive below boundary fails", 89.9, 100, 0.90, true, true},
		{"strict above boundary passes", 90.1, 100, 0.90, false, false},
		{"inclusive well above passes", 200, 100, 0.90, true, false},
		{"strict well above passes", 200, 100, 1.40, false, false},
		{"strict equal throughput at ratio 1 fails", 100, 100, 1.0, false, true},
		{"inclusive equal throughput at ratio 1 passes", 100, 100, 1.0, true, false},
		{"zero baseline never too slow inclusive", 0, 0, 0.90, true, false},
		{"zero baseline strict equality fails", 0, 0, 0.90, false, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := TooSlow(mustRps(t, tt.candidate), mustRps(t, tt.baseline), tt.ratio, tt.inclusive)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTooSlow_EpsilonAbsorbsRounding(t *testing.T) {
	t.Parallel()

	// 0.9*100 is not exactly representable; the inclusive gate must not fail
	// on the floating-point residue.
	candidate := mustRps(t, 100*0.9)
	baseline := mustRps(t, 100)

	require.False(t, TooSlow(candidate, baseline, 0.9, true))
}

func TestActualRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.9, ActualRatio(mustRps(t, 90), mustRps(t, 100)), 1e-12)
	assert.True(t, math.IsInf(ActualRatio(mustRps(t, 90), mustRps(t, 0)), 1))
}

func TestCrossProtocol(t *testing.T) {
	t.Parallel()

	grpc := mustRps(t, 70)
	hello := mustRps(t, 100)

	t.Run("passes at boundary", func(t *testing.T) {
		t.Parallel()

		v := CrossProtocol(&grpc, &hello, 0.70)
		require.False(t, v.Skipped)
		require.False(t, v.TooSlow)
		require.InDelta(t, 0.7, v.ActualRatio, 1e-12)
	})

	t.Run("fails below boundary", func(t *testing.T) {
		t.Parallel()

		slow := mustRps(t, 60)
		v := CrossProtocol(&slow, &hello, 0.70)
		require.False(t, v.Skipped)
		require.True(t, v.TooSlow)
	})

	t.Run("skipped when baseline missing", func(t *testing.T) {
		t.Parallel()

		v := CrossProtocol(&grpc, nil, 0.70)
		require.True(t, v.Skipped)
		require.NotEmpty(t, v.SkipReason)
	})

	t.Run("skipped when candidate missing", func(t *testing.T) {
		t.Parallel()

		v := CrossProtocol(nil, &hello, 0.70)
		require.True(t, v.Skipped)
		require.NotEmpty(t, v.SkipReason)
	})
}

func TestFormatRatio(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.900", FormatRatio(0.9))
	assert.Equal(t, "inf", FormatRatio(math.Inf(1)))
}
