package services

import (
	"testing"
	"time"

	"contabile/internal/core"
)

func TestDailyChecker_IsDue(t *testing.T) {
	checker := DailyChecker{}
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lastExecution time.Time
		want          bool
	}{
		{
			name:          "never executed - is due",
			lastExecution: time.Time{},
			want:          true,
		},
		{
			name:          "executed today - not due",
			lastExecution: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "executed yesterday - is due",
			lastExecution: time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.lastExecution, now, startDate)
			if got != tt.want {
				t.Errorf("DailyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklyChecker_IsDue(t *testing.T) {
	checker := WeeklyChecker{}
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lastExecution time.Time
		want          bool
	}{
		{
			name:          "never executed - is due",
			lastExecution: time.Time{},
			want:          true,
		},
		{
			name:          "executed 3 days ago - not due",
			lastExecution: time.Date(2025, 1, 12, 12, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "executed 7 days ago - is due",
			lastExecution: time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC),
			want:          true,
		},
		{
			name:          "executed 10 days ago - is due",
			lastExecution: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.lastExecution, now, startDate)
			if got != tt.want {
				t.Errorf("WeeklyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}

	tests := []struct {
		name          string
		lastExecution time.Time
		now           time.Time
		startDate     time.Time
		want          bool
	}{
		{
			name:          "never executed - is due",
			lastExecution: time.Time{},
			now:           time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			want:          true,
		},
		{
			name:          "executed this month - not due",
			lastExecution: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "new month but before target day - not due",
			lastExecution: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "new month and on target day - is due",
			lastExecution: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2025, 2, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			want:          true,
		},
		{
			name:          "target day 31 clamps to end of February",
			lastExecution: time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.lastExecution, tt.now, tt.startDate)
			if got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestYearlyChecker_IsDue(t *testing.T) {
	checker := YearlyChecker{}

	tests := []struct {
		name          string
		lastExecution time.Time
		now           time.Time
		startDate     time.Time
		want          bool
	}{
		{
			name:          "never executed - is due",
			lastExecution: time.Time{},
			now:           time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			want:          true,
		},
		{
			name:          "executed this year - not due",
			lastExecution: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "new year but before target month - not due",
			lastExecution: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "new year and past target month - is due",
			lastExecution: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			want:          true,
		},
		{
			name:          "new year same month before target day - not due",
			lastExecution: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			want:          false,
		},
		{
			name:          "new year same month on target day - is due",
			lastExecution: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
			startDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			want:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.lastExecution, tt.now, tt.startDate)
			if got != tt.want {
				t.Errorf("YearlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDuenessChecker(t *testing.T) {
	tests := []struct {
		name    string
		every   core.RepetitionType
		wantErr bool
	}{
		{"daily", core.Daily, false},
		{"weekly", core.Weekly, false},
		{"monthly", core.Monthly, false},
		{"yearly", core.Yearly, false},
		{"unknown", core.RepetitionType("biweekly"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, err := GetDuenessChecker(tt.every)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetDuenessChecker() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && checker == nil {
				t.Error("GetDuenessChecker() returned nil checker")
			}
		})
	}
}

func TestRegisterDuenessChecker(t *testing.T) {
	customEvery := core.RepetitionType("biweekly")

	RegisterDuenessChecker(customEvery, WeeklyChecker{})
	t.Cleanup(func() { delete(duenessCheckers, customEvery) })

	checker, err := GetDuenessChecker(customEvery)
	if err != nil {
		t.Errorf("GetDuenessChecker() after register error = %v", err)
	}
	if checker == nil {
		t.Error("GetDuenessChecker() returned nil after registration")
	}
}
