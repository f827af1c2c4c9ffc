package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffBaseTable(t *testing.T) {
	cases := []struct {
		runCount int64
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{3, 2 * time.Second},
		{4, 5 * time.Second},
		{6, 5 * time.Second},
		{7, 15 * time.Second},
		{10, 15 * time.Second},
		{11, 30 * time.Second},
		{15, 30 * time.Second},
		{16, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, backoffBase(c.runCount), "run_count=%d", c.runCount)
	}
}

func TestRestartDelayRapidFlapPenalty(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	withinWindow := now.Add(-5 * time.Second)
	assert.Equal(t, 2*time.Second+20*time.Second, restartDelay(1, withinWindow, now))

	outsideWindow := now.Add(-11 * time.Second)
	assert.Equal(t, 2*time.Second, restartDelay(1, outsideWindow, now))

	assert.Equal(t, 2*time.Second, restartDelay(1, time.Time{}, now))
}

func TestBackoffMonotonicity(t *testing.T) {
	var prev time.Duration
	for n := int64(1); n <= 20; n++ {
		cur := backoffBase(n)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}
