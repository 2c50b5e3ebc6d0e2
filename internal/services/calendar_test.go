package services

import (
	"testing"
	"time"
)

func TestIsBusinessDay(t *testing.T) {
	// 2026-08-24 is a Monday, 2026-08-29 a Saturday.
	monday := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	// 2026-07-03 is the observed US Independence Day holiday (July 4 falls
	// on a Saturday).
	julyThird := time.Date(2026, 7, 3, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		day      time.Time
		country  string
		expected bool
	}{
		{"weekday no country", monday, "NONE", true},
		{"weekend no country", saturday, "NONE", false},
		{"US holiday observed", julyThird, "US", false},
		{"same day without holidays", julyThird, "NONE", true},
		{"weekend with country", saturday, "US", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusinessDay(tt.day, tt.country); got != tt.expected {
				t.Errorf("IsBusinessDay(%s, %s) = %v, expected %v",
					tt.day.Format("2006-01-02"), tt.country, got, tt.expected)
			}
		})
	}
}
