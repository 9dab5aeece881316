package parse

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRps(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 0.001, 12345.67, 1e12} {
		rps, err := NewRps(v)
		require.NoError(t, err)
		require.Equal(t, v, rps.Value())
	}

	_, err := NewRps(-1)
	require.Error(t, err)

	_, err = NewRps(math.NaN())
	require.Error(t, err)
}

func TestDiagnosticsFormat(t *testing.T) {
	t.Parallel()

	d := Diagnostics{
		Tool:       "k6",
		Message:    "failed to parse k6 http RPS",
		StdoutTail: "out line",
		StderrTail: "err line",
	}

	got := d.Format()
	assert.Equal(t, "failed to parse k6 http RPS\n--- k6 stdout (tail) ---\nout line\n--- k6 stderr (tail) ---\nerr line", got)
}

func TestTailLines(t *testing.T) {
	t.Parallel()

	text := "a\nb\nc\nd\n"

	assert.Equal(t, "c\nd", TailLines(text, 2))
	assert.Equal(t, text, TailLines(text, 10))
	assert.Equal(t, "", TailLines(text, 0))
	assert.Equal(t, "", TailLines("", 5))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))

	long := strings.Repeat("x", diagMaxChars+100)
	got := Truncate(long, diagMaxChars)
	assert.Len(t, got, diagMaxChars+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestParseSIFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token string
		want  float64
		ok    bool
	}{
		{"123.4", 123.4, true},
		{"12.3k", 12300.0, true},
		{"12.3K", 12300.0, true},
		{"1.2M", 1.2e6, true},
		{"1.2m", 1.2e6, true},
		{"3.4G", 3.4e9, true},
		{"3.4g", 3.4e9, true},
		{"0", 0, true},
		{"not-a-number", 0, false},
		{"", 0, false},
		{"k", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.token, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseSIFloat(tt.token)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}
