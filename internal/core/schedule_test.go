package core

import (
	"errors"
	"testing"
)

func TestShouldFire_BeforeStartDate(t *testing.T) {
	start := NewDate(2025, 3, 1)
	target := NewDate(2025, 2, 28)

	tests := []struct {
		name      string
		dayRule   string
		frequency Frequency
	}{
		{"daily every day", "매일", FrequencyDaily},
		{"daily weekdays", "평일만", FrequencyDaily},
		{"weekly monday", "월요일", FrequencyWeekly},
		{"monthly last day", "매월 말일", FrequencyMonthly},
		{"monthly fixed day", "매월 28일", FrequencyMonthly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ShouldFire(tt.dayRule, tt.frequency, target, start) {
				t.Errorf("ShouldFire(%q) = true before start date, want false", tt.dayRule)
			}
		})
	}
}

func TestShouldFire_Daily(t *testing.T) {
	start := NewDate(2025, 1, 1)
	monday := NewDate(2025, 3, 3)
	friday := NewDate(2025, 3, 7)
	saturday := NewDate(2025, 3, 8)
	sunday := NewDate(2025, 3, 9)

	tests := []struct {
		name    string
		dayRule string
		target  Date
		want    bool
	}{
		{"every day on monday", "매일", monday, true},
		{"every day on sunday", "매일", sunday, true},
		{"weekdays only on monday", "평일만", monday, true},
		{"weekdays only on friday", "평일만", friday, true},
		{"weekdays only on saturday", "평일만", saturday, false},
		{"weekdays only on sunday", "평일만", sunday, false},
		{"weekends only on saturday", "주말만", saturday, true},
		{"weekends only on sunday", "주말만", sunday, true},
		{"weekends only on monday", "주말만", monday, false},
		{"unknown token never fires", "격일", monday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldFire(tt.dayRule, FrequencyDaily, tt.target, start)
			if got != tt.want {
				t.Errorf("ShouldFire(%q, DAILY, %s) = %v, want %v", tt.dayRule, tt.target, got, tt.want)
			}
		})
	}
}

func TestShouldFire_Weekly(t *testing.T) {
	start := NewDate(2025, 1, 1)
	monday := NewDate(2025, 3, 3)
	wednesday := NewDate(2025, 3, 5)
	thursday := NewDate(2025, 3, 6)
	sunday := NewDate(2025, 3, 9)

	tests := []struct {
		name    string
		dayRule string
		target  Date
		want    bool
	}{
		{"single day match", "월요일", monday, true},
		{"single day no match", "월요일", wednesday, false},
		{"multi day first", "월요일,수요일", monday, true},
		{"multi day second", "월요일,수요일", wednesday, true},
		{"multi day miss", "월요일,수요일", thursday, false},
		{"free text prefix", "매주 일요일", sunday, true},
		{"sunday not confused with monday", "월요일", sunday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldFire(tt.dayRule, FrequencyWeekly, tt.target, start)
			if got != tt.want {
				t.Errorf("ShouldFire(%q, WEEKLY, %s) = %v, want %v", tt.dayRule, tt.target, got, tt.want)
			}
		})
	}
}

func TestShouldFire_Monthly(t *testing.T) {
	start := NewDate(2024, 1, 1)

	tests := []struct {
		name    string
		dayRule string
		target  Date
		want    bool
	}{
		{"last day february non-leap", "매월 말일", NewDate(2025, 2, 28), true},
		{"last day february leap", "매월 말일", NewDate(2024, 2, 29), true},
		{"not last day february leap", "매월 말일", NewDate(2024, 2, 28), false},
		{"last day december", "매월 말일", NewDate(2024, 12, 31), true},
		{"last day april", "매월 말일", NewDate(2024, 4, 30), true},
		{"mid month not last", "매월 말일", NewDate(2024, 4, 15), false},
		{"fixed day match", "매월 5일", NewDate(2025, 3, 5), true},
		{"fixed day miss", "매월 5일", NewDate(2025, 3, 6), false},
		{"fixed day no space", "매월5일", NewDate(2025, 3, 5), true},
		{"malformed day text never fires", "매월 오일", NewDate(2025, 3, 5), false},
		{"missing prefix never fires", "5일", NewDate(2025, 3, 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldFire(tt.dayRule, FrequencyMonthly, tt.target, start)
			if got != tt.want {
				t.Errorf("ShouldFire(%q, MONTHLY, %s) = %v, want %v", tt.dayRule, tt.target, got, tt.want)
			}
		})
	}
}

func TestShouldFire_UnknownFrequency(t *testing.T) {
	start := NewDate(2025, 1, 1)
	if ShouldFire("매일", Frequency("YEARLY"), NewDate(2025, 3, 3), start) {
		t.Error("unknown frequency should never fire")
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name      string
		frequency Frequency
		dayRule   string
		wantErr   error
	}{
		{"daily every day", FrequencyDaily, "매일", nil},
		{"daily unknown token", FrequencyDaily, "주중", ErrInvalidDayRule},
		{"weekly two days", FrequencyWeekly, "화요일,목요일", nil},
		{"weekly no weekday", FrequencyWeekly, "매일", ErrInvalidDayRule},
		{"monthly last day", FrequencyMonthly, "매월 말일", nil},
		{"monthly day 15", FrequencyMonthly, "매월 15일", nil},
		{"monthly malformed", FrequencyMonthly, "매월 오일", ErrInvalidDayRule},
		{"monthly out of range", FrequencyMonthly, "매월 32일", ErrInvalidDayRule},
		{"unknown frequency", Frequency("YEARLY"), "매일", ErrInvalidFrequency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchedule(tt.frequency, tt.dayRule)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ParseSchedule(%v, %q) error = %v, want nil", tt.frequency, tt.dayRule, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseSchedule(%v, %q) error = %v, want %v", tt.frequency, tt.dayRule, err, tt.wantErr)
			}
		})
	}
}

func TestParseSchedule_WeeklyDaySet(t *testing.T) {
	schedule, err := ParseSchedule(FrequencyWeekly, "월요일,수요일")
	if err != nil {
		t.Fatalf("ParseSchedule error: %v", err)
	}
	weekly, ok := schedule.(WeeklySchedule)
	if !ok {
		t.Fatalf("expected WeeklySchedule, got %T", schedule)
	}
	want := [7]bool{true, false, true, false, false, false, false}
	if weekly.Days != want {
		t.Errorf("Days = %v, want %v", weekly.Days, want)
	}
}
