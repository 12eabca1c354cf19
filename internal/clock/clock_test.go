package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in      string
		seconds int
		wantErr bool
	}{
		{"", 0, false},
		{"UTC", 0, false},
		{"+02:00", 7200, false},
		{"-05:30", -19800, false},
		{"+0545", 20700, false},
		{"+3", 10800, false},
		{"02:00", 0, true},
		{"+25:00", 0, true},
		{"+02:75", 0, true},
		{"+abc", 0, true},
		{"+123", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			loc, err := ParseOffset(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
			assert.Equal(t, tt.seconds, offset)
		})
	}
}

func TestNewTick(t *testing.T) {
	loc := time.FixedZone("UTC+2", 7200)
	tick := NewTick(time.Date(2026, 4, 1, 22, 30, 45, 999, time.UTC), loc)

	assert.Equal(t, 0, tick.Time.Second())
	assert.Equal(t, 0, tick.Time.Nanosecond())
	assert.Equal(t, 0, tick.Hour())
	assert.Equal(t, 30, tick.Minute())
	assert.Equal(t, 2, tick.Day())
	assert.Equal(t, time.April, tick.Month())
	assert.Equal(t, time.Thursday, tick.Weekday())

	next := tick.Add(time.Minute)
	assert.True(t, next.After(tick))
	assert.False(t, tick.After(tick))
	assert.False(t, tick.IsZero())
	assert.True(t, Tick{}.IsZero())
}

func TestManualSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	src := NewManualSource(start, time.UTC)
	ticks := src.Ticks(ctx)

	src.Emit(start.Add(30 * time.Second))
	src.Emit(start.Add(90 * time.Second))

	first := <-ticks
	second := <-ticks
	assert.Equal(t, start, first.Time)
	assert.Equal(t, start.Add(time.Minute), second.Time)
	assert.Equal(t, start.Add(90*time.Second), src.Now())

	cancel()
	_, open := <-ticks
	assert.False(t, open)
}

func TestMinuteSource_EmitsBoundaries(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 59, 980_000_000, time.UTC)

	var mu sync.Mutex
	calls := 0
	src := NewMinuteSource(time.UTC)
	src.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		// Each emission consumes two reads: one to schedule, one after firing.
		n := calls / 2
		calls++
		return base.Add(time.Duration(n) * time.Minute)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks := src.Ticks(ctx)

	first := <-ticks
	second := <-ticks
	assert.Equal(t, time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC), first.Time)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 2, 0, 0, time.UTC), second.Time)
}

func TestMinuteSource_SkipsAfterStall(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 59, 990_000_000, time.UTC)
	wake := time.Date(2026, 1, 1, 13, 7, 12, 0, time.UTC)

	var mu sync.Mutex
	calls := 0
	src := NewMinuteSource(time.UTC)
	src.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return base
		}
		return wake
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tick := <-src.Ticks(ctx)
	assert.Equal(t, time.Date(2026, 1, 1, 13, 7, 0, 0, time.UTC), tick.Time)
}
