// Package clock produces minute-resolution ticks for the scheduler.
package clock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Tick is one scheduler evaluation instant: a time truncated to the minute
// and expressed in the configured zone.
type Tick struct {
	Time time.Time
}

// NewTick truncates t to its minute in loc.
func NewTick(t time.Time, loc *time.Location) Tick {
	if loc == nil {
		loc = time.UTC
	}
	return Tick{Time: t.In(loc).Truncate(time.Minute)}
}

// After reports whether the tick is strictly later than other.
func (t Tick) After(other Tick) bool { return t.Time.After(other.Time) }

// IsZero reports whether the tick is unset.
func (t Tick) IsZero() bool { return t.Time.IsZero() }

// Add returns the tick d later.
func (t Tick) Add(d time.Duration) Tick { return Tick{Time: t.Time.Add(d)} }

func (t Tick) Minute() int           { return t.Time.Minute() }
func (t Tick) Hour() int             { return t.Time.Hour() }
func (t Tick) Day() int              { return t.Time.Day() }
func (t Tick) Month() time.Month     { return t.Time.Month() }
func (t Tick) Weekday() time.Weekday { return t.Time.Weekday() }
func (t Tick) String() string        { return t.Time.Format("2006-01-02 15:04 -07:00") }

// Source emits ticks in increasing order.
type Source interface {
	// Now returns the current wall time in the source's zone.
	Now() time.Time
	// Location is the zone ticks are expressed in.
	Location() *time.Location
	// Ticks starts emitting and returns the channel. The channel is closed
	// when ctx is done.
	Ticks(ctx context.Context) <-chan Tick
}

// ParseOffset converts "+02:00", "-0530", "+3" or "UTC" into a fixed zone.
func ParseOffset(offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	if offset == "" || strings.EqualFold(offset, "UTC") || strings.EqualFold(offset, "Z") {
		return time.UTC, nil
	}

	sign := 1
	switch offset[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, fmt.Errorf("invalid utc offset %q: must start with + or -", offset)
	}

	rest := strings.ReplaceAll(offset[1:], ":", "")
	var hours, minutes int
	var err error
	switch len(rest) {
	case 1, 2:
		hours, err = strconv.Atoi(rest)
	case 4:
		hours, err = strconv.Atoi(rest[:2])
		if err == nil {
			minutes, err = strconv.Atoi(rest[2:])
		}
	default:
		return nil, fmt.Errorf("invalid utc offset %q", offset)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q: %w", offset, err)
	}
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("invalid utc offset %q: out of range", offset)
	}

	seconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(fmt.Sprintf("UTC%s", offset), seconds), nil
}

// MinuteSource ticks on every wall-clock minute boundary.
type MinuteSource struct {
	loc    *time.Location
	now    func() time.Time
	buffer int
}

// NewMinuteSource creates a real-time source in loc.
func NewMinuteSource(loc *time.Location) *MinuteSource {
	if loc == nil {
		loc = time.UTC
	}
	return &MinuteSource{loc: loc, now: time.Now, buffer: 16}
}

func (s *MinuteSource) Now() time.Time { return s.now().In(s.loc) }

func (s *MinuteSource) Location() *time.Location { return s.loc }

// Ticks emits the tick for each minute boundary. If the machine was suspended
// the next tick is simply the current minute; missed minutes are not replayed.
func (s *MinuteSource) Ticks(ctx context.Context) <-chan Tick {
	ch := make(chan Tick, s.buffer)

	go func() {
		defer close(ch)

		for {
			now := s.now()
			next := now.Truncate(time.Minute).Add(time.Minute)
			timer := time.NewTimer(next.Sub(now))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				tick := NewTick(next, s.loc)
				if current := NewTick(s.now(), s.loc); current.After(tick) {
					tick = current
				}
				select {
				case ch <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch
}

// ManualSource is driven explicitly, for tests and replay tooling.
type ManualSource struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
	ch  chan Tick
}

// NewManualSource starts the manual clock at now.
func NewManualSource(now time.Time, loc *time.Location) *ManualSource {
	if loc == nil {
		loc = time.UTC
	}
	return &ManualSource{now: now, loc: loc, ch: make(chan Tick, 64)}
}

func (s *ManualSource) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now.In(s.loc)
}

func (s *ManualSource) Location() *time.Location { return s.loc }

// Set moves the wall clock without emitting.
func (s *ManualSource) Set(now time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Emit advances the wall clock to t and queues its tick.
func (s *ManualSource) Emit(t time.Time) Tick {
	tick := NewTick(t, s.loc)
	s.Set(t)
	s.ch <- tick
	return tick
}

func (s *ManualSource) Ticks(ctx context.Context) <-chan Tick {
	out := make(chan Tick)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-s.ch:
				select {
				case out <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
