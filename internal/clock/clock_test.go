package clock

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	in := time.Date(2024, 3, 9, 23, 59, 59, 5, time.UTC)
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := StartOfDay(in); !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
}

func TestSameDay_ComparesCalendarDates(t *testing.T) {
	east := time.FixedZone("east", 5*3600)
	a := time.Date(2024, 3, 9, 0, 0, 0, 0, east)
	b := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Error("same calendar date in different zones should match")
	}
	if SameDay(a, b.AddDate(0, 0, 1)) {
		t.Error("different dates should not match")
	}
}

func TestFixed(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := Fixed(at).Now(); !got.Equal(at) {
		t.Errorf("Fixed.Now = %v", got)
	}
}
