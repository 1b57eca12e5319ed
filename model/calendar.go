package model

import (
	"fmt"
	"time"
)

// Period identifies the recurring cycle an invoice belongs to. It is the
// month the invoice was issued for, which is not necessarily the wall-clock
// month of its creation.
type Period struct {
	Month time.Month
	Year  int
}

// PeriodOf returns the period that t falls into.
func PeriodOf(t time.Time) Period {
	return Period{Month: t.Month(), Year: t.Year()}
}

func (p Period) String() string {
	return fmt.Sprintf("%02d/%d", int(p.Month), p.Year)
}

// LastCalendarDayOfMonth returns the number of days in the given month.
func LastCalendarDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LastBusinessDayOfMonth returns the date of the last weekday of the month
// in the given location. A Saturday or Sunday month end rolls back to the
// preceding Friday. Only weekends count; public holidays are not consulted.
func LastBusinessDayOfMonth(year int, month time.Month, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := time.Date(year, month, LastCalendarDayOfMonth(year, month), 0, 0, 0, 0, loc)
	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, -1)
	case time.Sunday:
		d = d.AddDate(0, 0, -2)
	}
	return d
}

// IsLastBusinessDay reports whether t falls on the last business day of its
// month. This is the trigger condition of the recurring generation run.
func IsLastBusinessDay(t time.Time) bool {
	last := LastBusinessDayOfMonth(t.Year(), t.Month(), t.Location())
	ty, tm, td := t.Date()
	ly, lm, ld := last.Date()
	return ty == ly && tm == lm && td == ld
}
