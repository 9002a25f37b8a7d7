//go:build windows

package media

import (
	"testing"
	"time"
)

// Matches spec testable property #3: LastUpdatedTime.UniversalTime =
// 133_000_000_000_000_000, Position.Duration = 600_000_000,
// StartTime.Duration = 0, EndTime.Duration = 1_800_000_000.
// Expected: start = 2022-05-25T17:46:40Z - 60s, end = start + 180s.
func TestWindowsTimestampConversion(t *testing.T) {
	lastUpdated := time.UnixMicro(ticksToUnixMicros(133_000_000_000_000_000)).UTC()

	want := time.Date(2022, 5, 25, 17, 46, 40, 0, time.UTC)
	if !lastUpdated.Equal(want) {
		t.Fatalf("lastUpdated = %v, want %v", lastUpdated, want)
	}

	position := time.Duration(ticksToDurationNanos(600_000_000))
	startOffset := time.Duration(ticksToDurationNanos(0))
	endOffset := time.Duration(ticksToDurationNanos(1_800_000_000))

	start := lastUpdated.Add(-position).Add(startOffset)
	end := lastUpdated.Add(-position).Add(endOffset)

	wantStart := want.Add(-60 * time.Second)
	wantEnd := wantStart.Add(180 * time.Second)

	if !start.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Fatalf("end = %v, want %v", end, wantEnd)
	}
}
