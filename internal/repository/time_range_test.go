package repository

import (
	"testing"
	"time"
)

func TestDayRangeUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*3600)

	start, end, err := DayRange("2024-01-02", tokyo)
	if err != nil {
		t.Fatalf("DayRange error: %v", err)
	}
	wantStart := time.Date(2024, 1, 2, 0, 0, 0, 0, tokyo).UnixMilli()
	if start != wantStart {
		t.Fatalf("start=%d, want %d", start, wantStart)
	}
	if end != wantStart+24*3600*1000-1 {
		t.Fatalf("end=%d, want start+1d-1ms", end)
	}

	utcStart, _, err := DayRange("2024-01-02", time.UTC)
	if err != nil {
		t.Fatalf("DayRange error: %v", err)
	}
	if utcStart-start != 9*3600*1000 {
		t.Fatalf("utc start - tokyo start=%d, want 9h", utcStart-start)
	}

	if _, _, err := DayRange("2024/01/02", time.UTC); err == nil {
		t.Fatalf("expected parse error")
	}
}
