package watch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	valid := []string{"*/30 * * * *", "0 3 * * 1-5", "@hourly", "@every 10m"}
	for _, expr := range valid {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseSchedule(expr)
			assert.NoError(t, err)
		})
	}

	t.Run("empty", func(t *testing.T) {
		_, err := ParseSchedule("")
		assert.ErrorContains(t, err, "requires a cron expression")
	})

	t.Run("seconds field is not supported", func(t *testing.T) {
		_, err := ParseSchedule("0 */5 * * * *")
		assert.ErrorContains(t, err, "invalid cron expression")
	})
}

func TestScheduler_Next(t *testing.T) {
	t.Run("evaluated in configured timezone", func(t *testing.T) {
		s, err := NewScheduler(ScheduleConfig{Expr: "0 9 * * *", TZ: "Asia/Jakarta"}, zerolog.Nop())
		require.NoError(t, err)
		s.now = func() time.Time { return time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC) }

		next := s.Next()
		assert.Equal(t, time.Date(2024, 12, 25, 2, 0, 0, 0, time.UTC), next.UTC())
	})

	t.Run("invalid timezone", func(t *testing.T) {
		_, err := NewScheduler(ScheduleConfig{Expr: "@hourly", TZ: "Mars/Olympus"}, zerolog.Nop())
		assert.ErrorContains(t, err, "invalid timezone")
	})
}

func TestScheduler_Runs(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a one second schedule")
	}

	var runs atomic.Int32
	s, err := NewScheduler(ScheduleConfig{
		Expr: "@every 1s",
		Job:  func() { runs.Add(1) },
	}, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	s.Stop()
	stoppedAt := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, stoppedAt, runs.Load())
}
