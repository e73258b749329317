package services

import (
	"fmt"
	"time"

	"contabile/internal/core"
)

// DuenessChecker decides whether a recurring template should materialize a
// transaction now, given when it last ran and the day-of-cycle anchor taken
// from its start date.
type DuenessChecker interface {
	IsDue(lastExecution, now, startDate time.Time) bool
}

// DailyChecker fires once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastExecution, now, _ time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	return lastExecution.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyChecker fires when at least seven days have passed since the last
// run.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastExecution, now, _ time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	return now.Sub(lastExecution) >= 7*24*time.Hour
}

// MonthlyChecker fires once per calendar month, on or after the start
// date's day of month. The day clamps to shorter months, so a template
// anchored on the 31st still runs in February.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastExecution, now, startDate time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	if lastExecution.Year() == now.Year() && lastExecution.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(startDate.Day(), now)
}

// YearlyChecker fires once per calendar year, on or after the start date's
// month and day.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastExecution, now, startDate time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	if lastExecution.Year() == now.Year() {
		return false
	}
	if now.Month() != startDate.Month() {
		return now.Month() > startDate.Month()
	}
	return now.Day() >= clampDay(startDate.Day(), now)
}

// clampDay fits a day of month into the month now falls in.
func clampDay(day int, now time.Time) int {
	last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	if day > last {
		return last
	}
	return day
}

var duenessCheckers = map[core.RepetitionType]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a cadence.
func GetDuenessChecker(every core.RepetitionType) (DuenessChecker, error) {
	checker, ok := duenessCheckers[every]
	if !ok {
		return nil, fmt.Errorf("unsupported repetition type: %s", every)
	}
	return checker, nil
}

// RegisterDuenessChecker installs or replaces the checker for a cadence.
func RegisterDuenessChecker(every core.RepetitionType, checker DuenessChecker) {
	duenessCheckers[every] = checker
}
