package dispatch

import (
	"testing"
	"time"
)

func TestInQuietHours(t *testing.T) {
	cases := []struct {
		hour int
		want bool
	}{
		{22, false},
		{23, true},
		{0, true},
		{8, true},
		{9, false},
		{12, false},
	}
	for _, c := range cases {
		at := time.Date(2024, 1, 9, c.hour, 30, 0, 0, time.UTC)
		if got := InQuietHours(at); got != c.want {
			t.Errorf("InQuietHours at %02d:30: expected %v, got %v", c.hour, c.want, got)
		}
	}
}

func TestNextAllowed(t *testing.T) {
	loc := time.UTC

	t.Run("OutsideQuietHoursUnchanged", func(t *testing.T) {
		at := time.Date(2024, 1, 9, 14, 0, 0, 0, loc)
		if got := NextAllowed(at); !got.Equal(at) {
			t.Errorf("Expected %v unchanged, got %v", at, got)
		}
	})

	t.Run("LateEveningRollsToNextMorning", func(t *testing.T) {
		at := time.Date(2024, 1, 9, 23, 30, 0, 0, loc)
		want := time.Date(2024, 1, 10, 9, 0, 0, 0, loc)
		if got := NextAllowed(at); !got.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("EarlyMorningSameDay", func(t *testing.T) {
		at := time.Date(2024, 1, 10, 3, 0, 0, 0, loc)
		want := time.Date(2024, 1, 10, 9, 0, 0, 0, loc)
		if got := NextAllowed(at); !got.Equal(want) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})
}
