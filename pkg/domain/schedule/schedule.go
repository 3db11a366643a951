// Package schedule decides whether a pipeline is due to run again.
//
// Pure calculation. No I/O, no clock reading; "now" is always passed in,
// so every boundary can be tested against fixed timestamps.
package schedule

import (
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
)

// IsDue reports whether a pipeline with the given last run timestamp and
// frequency should run again at `now`.
//
// No last run = due, whatever the frequency.
// Otherwise the next eligible date is lastRun + a frequency-specific offset:
//
// - Weekly: +7 days
//
// - Twice a Month: +14 days, but when that lands on day-of-month >= 29,
// it rolls to the 1st of the following month instead.
//
// - Monthly: +1 calendar month
//
// - Every Other Month: +2 calendar months
//
// - Never: never due again
//
// Due when the next eligible date is not after now.
func IsDue(lastRun *time.Time, frequency domain.RunFrequency, now time.Time) bool {
	if lastRun == nil {
		return true
	}
	if frequency == domain.Never {
		return false
	}

	var next time.Time
	switch frequency {
	case domain.Weekly:
		next = lastRun.AddDate(0, 0, 7)
	case domain.TwiceAMonth:
		next = lastRun.AddDate(0, 0, 14)
		if next.Day() >= 29 {
			// too close to month end. roll to the 1st of the next month,
			// keeping time of day.
			next = time.Date(
				next.Year(), next.Month()+1, 1,
				next.Hour(), next.Minute(), next.Second(), next.Nanosecond(),
				next.Location(),
			)
		}
	case domain.Monthly:
		next = lastRun.AddDate(0, 1, 0)
	case domain.EveryOtherMonth:
		next = lastRun.AddDate(0, 2, 0)
	default:
		return false
	}

	return !next.After(now)
}
