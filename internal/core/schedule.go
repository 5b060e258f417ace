// Package core holds the ledger domain model.
//
// This file implements the recurrence grammar. A rule's day-rule string is
// parsed once into a typed Schedule (one implementation per frequency), so
// the hot evaluation path never re-parses strings and malformed patterns are
// caught when a rule is written instead of silently at run time.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Schedule decides whether a rule occurrence falls on a calendar date.
// Implementations are pure and deterministic.
type Schedule interface {
	// ShouldFire reports whether the rule fires on target. A target before
	// the rule's start date never fires.
	ShouldFire(target, start Date) bool
}

// Daily-rule literal tokens.
const (
	DayRuleEveryDay     = "매일"
	DayRuleWeekdaysOnly = "평일만"
	DayRuleWeekendsOnly = "주말만"
	DayRuleLastDay      = "매월 말일"
	dayRuleMonthPrefix  = "매월"
	dayRuleDaySuffix    = "일"
)

// weekdayNames are the seven Korean weekday names, Monday-indexed.
var weekdayNames = [7]string{"월요일", "화요일", "수요일", "목요일", "금요일", "토요일", "일요일"}

type DailyMode int

const (
	DailyEvery DailyMode = iota
	DailyWeekdaysOnly
	DailyWeekendsOnly
)

// DailySchedule fires every day, or only on weekdays/weekends.
type DailySchedule struct {
	Mode DailyMode
}

func (s DailySchedule) ShouldFire(target, start Date) bool {
	if target.BeforeDate(start) {
		return false
	}
	switch s.Mode {
	case DailyWeekdaysOnly:
		return !target.IsWeekend()
	case DailyWeekendsOnly:
		return target.IsWeekend()
	default:
		return true
	}
}

// WeeklySchedule fires on a set of weekdays, Monday-indexed.
type WeeklySchedule struct {
	Days [7]bool
}

func (s WeeklySchedule) ShouldFire(target, start Date) bool {
	if target.BeforeDate(start) {
		return false
	}
	return s.Days[target.WeekdayIndex()]
}

// MonthlySchedule fires on a fixed day of month, or on the last day.
type MonthlySchedule struct {
	LastDay bool
	Day     int
}

func (s MonthlySchedule) ShouldFire(target, start Date) bool {
	if target.BeforeDate(start) {
		return false
	}
	if s.LastDay {
		return target.Day() == target.LastDayOfMonth()
	}
	return target.Day() == s.Day
}

// ParseSchedule parses a day-rule string under the grammar of its frequency.
// It is the write-time validator: rule create/update rejects anything this
// function cannot parse. Legacy rows that predate validation are handled by
// ShouldFire, which maps a parse failure to "never fires".
func ParseSchedule(frequency Frequency, dayRule string) (Schedule, error) {
	switch frequency {
	case FrequencyDaily:
		return parseDaily(dayRule)
	case FrequencyWeekly:
		return parseWeekly(dayRule)
	case FrequencyMonthly:
		return parseMonthly(dayRule)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, frequency)
	}
}

// ShouldFire evaluates a raw day-rule string against a date. Unparseable
// rules never fire; no error escapes this path.
func ShouldFire(dayRule string, frequency Frequency, target, start Date) bool {
	schedule, err := ParseSchedule(frequency, dayRule)
	if err != nil {
		return false
	}
	return schedule.ShouldFire(target, start)
}

func parseDaily(dayRule string) (Schedule, error) {
	switch dayRule {
	case DayRuleEveryDay:
		return DailySchedule{Mode: DailyEvery}, nil
	case DayRuleWeekdaysOnly:
		return DailySchedule{Mode: DailyWeekdaysOnly}, nil
	case DayRuleWeekendsOnly:
		return DailySchedule{Mode: DailyWeekendsOnly}, nil
	}
	return nil, fmt.Errorf("%w: unknown daily token %q", ErrInvalidDayRule, dayRule)
}

// parseWeekly accepts free text naming one or more weekdays, such as
// "월요일" or "월요일,수요일". Matching is by substring so prefixes like
// "매주 금요일" also work.
func parseWeekly(dayRule string) (Schedule, error) {
	var schedule WeeklySchedule
	found := false
	for i, name := range weekdayNames {
		if strings.Contains(dayRule, name) {
			schedule.Days[i] = true
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: no weekday name in %q", ErrInvalidDayRule, dayRule)
	}
	return schedule, nil
}

func parseMonthly(dayRule string) (Schedule, error) {
	if dayRule == DayRuleLastDay {
		return MonthlySchedule{LastDay: true}, nil
	}
	if !strings.HasPrefix(dayRule, dayRuleMonthPrefix) {
		return nil, fmt.Errorf("%w: monthly rule must start with %q, got %q",
			ErrInvalidDayRule, dayRuleMonthPrefix, dayRule)
	}
	// "매월 5일" / "매월5일" → 5
	digits := strings.TrimPrefix(dayRule, dayRuleMonthPrefix)
	digits = strings.ReplaceAll(digits, dayRuleDaySuffix, "")
	day, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse day of month in %q", ErrInvalidDayRule, dayRule)
	}
	if day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: day of month %d out of range", ErrInvalidDayRule, day)
	}
	return MonthlySchedule{Day: day}, nil
}
