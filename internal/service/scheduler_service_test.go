package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("09:05")
	require.NoError(t, err)
	assert.Equal(t, "0 5 9 * * *", spec)

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "1:2:3"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildIntervalSpec(t *testing.T) {
	spec, err := buildIntervalSpec(90 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "@every 90s", spec)

	spec, err = buildIntervalSpec(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "@every 1s", spec)

	_, err = buildIntervalSpec(0)
	assert.Error(t, err)
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewSchedulerService(nil, time.Second, nil)
	noop := func(context.Context) (int, error) { return 0, nil }

	_, err := s.ScheduleInterval("purge", time.Minute, noop)
	require.NoError(t, err)
	_, err = s.ScheduleDaily("digest", "08:30", noop)
	require.NoError(t, err)
	_, err = s.ScheduleDaily("broken", "8.30", noop)
	assert.Error(t, err)

	assert.Equal(t, 2, s.Entries())
}

func TestSchedulerWrapAppliesTimeout(t *testing.T) {
	s := NewSchedulerService(nil, 10*time.Millisecond, nil)
	done := make(chan error, 1)
	s.wrap("slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		done <- ctx.Err()
		return 0, ctx.Err()
	})()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}
