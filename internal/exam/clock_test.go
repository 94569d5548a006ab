package exam

import (
	"testing"
	"time"
)

func TestClockRemaining(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{name: "just started", elapsed: 0, want: 1800},
		{name: "fraction floors", elapsed: 1500 * time.Millisecond, want: 1799},
		{name: "one second left", elapsed: 1799*time.Second + 999*time.Millisecond, want: 1},
		{name: "exactly at limit", elapsed: 1800 * time.Second, want: 0},
		{name: "long past limit", elapsed: 2 * time.Hour, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClock(func() time.Time { return start.Add(tc.elapsed) })
			if got := c.Remaining(start); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestClockComparesInstantsNotWallClocks(t *testing.T) {
	karachi := time.FixedZone("PKT", 5*60*60)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 15, 10, 0, 0, karachi)

	c := NewClock(func() time.Time { return now })
	if got := c.Remaining(start); got != 1200 {
		t.Fatalf("expected 1200, got %d", got)
	}
	if c.Now().Location() != time.UTC {
		t.Fatalf("expected UTC clock, got %v", c.Now().Location())
	}
}

func TestClockOverdue(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	grace := 30 * time.Second

	c := NewClock(func() time.Time { return start.Add(SessionDuration + grace) })
	if c.Overdue(start, grace) {
		t.Fatalf("exactly at grace boundary is not overdue")
	}
	c = NewClock(func() time.Time { return start.Add(SessionDuration + grace + time.Second) })
	if !c.Overdue(start, grace) {
		t.Fatalf("expected overdue past grace")
	}
}

func TestAsUTCKeepsWallClock(t *testing.T) {
	local := time.Date(2024, 3, 1, 10, 30, 15, 0, time.FixedZone("X", -7*60*60))
	got := AsUTC(local)
	want := time.Date(2024, 3, 1, 10, 30, 15, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseStartTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-03-01 10:00:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2024-03-01T10:00:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2024-03-01T15:00:00+05:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{in: "yesterday", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseStartTime(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tc.want) || got.Location() != time.UTC {
				t.Fatalf("expected %v UTC, got %v", tc.want, got)
			}
		})
	}
}
