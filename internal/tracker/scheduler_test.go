package tracker

import (
	"testing"
	"time"
)

func TestParseCheckTimes(t *testing.T) {
	times, err := parseCheckTimes([]string{"06:00", "18:30"})
	if err != nil {
		t.Fatalf("parseCheckTimes: %v", err)
	}
	want := []timeOfDay{{6, 0}, {18, 30}}
	for i, tt := range times {
		if tt != want[i] {
			t.Errorf("times[%d] = %v, want %v", i, tt, want[i])
		}
	}
}

func TestParseCheckTimesRejectsInvalid(t *testing.T) {
	for _, bad := range []string{"24:00", "-1:00", "12:60", "noon", ""} {
		if _, err := parseCheckTimes([]string{bad}); err == nil {
			t.Errorf("parseCheckTimes(%q) accepted an invalid time", bad)
		}
	}
}

func TestNextTrigger(t *testing.T) {
	times := []timeOfDay{{6, 0}, {18, 0}}
	loc := time.UTC

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before the morning trigger",
			now:  time.Date(2026, 3, 1, 4, 30, 0, 0, loc),
			want: time.Date(2026, 3, 1, 6, 0, 0, 0, loc),
		},
		{
			name: "between triggers",
			now:  time.Date(2026, 3, 1, 12, 0, 0, 0, loc),
			want: time.Date(2026, 3, 1, 18, 0, 0, 0, loc),
		},
		{
			name: "after the evening trigger rolls to tomorrow",
			now:  time.Date(2026, 3, 1, 22, 0, 0, 0, loc),
			want: time.Date(2026, 3, 2, 6, 0, 0, 0, loc),
		},
		{
			name: "exactly at a trigger picks the next one",
			now:  time.Date(2026, 3, 1, 6, 0, 0, 0, loc),
			want: time.Date(2026, 3, 1, 18, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextTrigger(tt.now, times)
			if !got.Equal(tt.want) {
				t.Errorf("nextTrigger(%s) = %s, want %s",
					tt.now.Format(time.RFC3339), got.Format(time.RFC3339), tt.want.Format(time.RFC3339))
			}
		})
	}
}

func TestNextTriggerAlwaysStrictlyAfterNow(t *testing.T) {
	times := []timeOfDay{{0, 0}, {6, 0}, {23, 59}}
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	next := nextTrigger(now, times)
	if !next.After(now) {
		t.Errorf("nextTrigger returned %s, not after %s", next, now)
	}
	if next.Sub(now) > 24*time.Hour {
		t.Errorf("nextTrigger returned %s, more than a day out", next)
	}
}
