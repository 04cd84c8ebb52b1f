package service

import (
	"time"

	"taskboard/internal/model"
)

// NextDueDate advances current by one recurrence step. Monthly steps use calendar
// arithmetic with normalisation, so Jan 31 plus one month lands on Mar 2 (Mar 3 in
// non-leap years). It returns nil for non-recurring types or a missing due date.
func NextDueDate(current *time.Time, typ model.RecurrenceType, interval int) *time.Time {
	if current == nil {
		return nil
	}
	if interval < 1 {
		interval = 1
	}

	var next time.Time
	switch typ {
	case model.RecurDaily, model.RecurCustom:
		next = current.AddDate(0, 0, interval)
	case model.RecurWeekly:
		next = current.AddDate(0, 0, 7*interval)
	case model.RecurMonthly:
		next = current.AddDate(0, interval, 0)
	default:
		return nil
	}
	return &next
}
