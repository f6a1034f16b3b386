package domain

import "time"

// EasternLocation returns America/New_York, falling back to a fixed
// -5h offset if the tzdata database isn't available in the runtime
// environment (minimal containers sometimes ship without it).
func EasternLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}

// The regular-session open and close times, in ET.
var (
	marketOpenHour, marketOpenMinute   = 9, 30
	marketCloseHour, marketCloseMinute = 16, 0
)

// IsMarketOpen reports whether t falls within the regular trading session.
func IsMarketOpen(t time.Time) bool {
	loc := EasternLocation()
	local := t.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), marketOpenHour, marketOpenMinute, 0, 0, loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, marketCloseMinute, 0, 0, loc)
	return !local.Before(open) && local.Before(close)
}

// IsPreMarketWindow reports whether t is within the 08:00-09:25 ET
// pre-market scan window used to schedule the PreMarketScanner.
func IsPreMarketWindow(t time.Time) bool {
	loc := EasternLocation()
	local := t.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	start := time.Date(local.Year(), local.Month(), local.Day(), 8, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 9, 25, 0, 0, loc)
	return !local.Before(start) && local.Before(end)
}

// TimeToClose returns the duration remaining until the regular session
// closes on t's trading date. Negative once the session has closed.
func TimeToClose(t time.Time) time.Duration {
	loc := EasternLocation()
	local := t.In(loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, marketCloseMinute, 0, 0, loc)
	return close.Sub(local)
}

// IsNearClose reports whether t is within window of the regular session close.
func IsNearClose(t time.Time, window time.Duration) bool {
	d := TimeToClose(t)
	return d >= 0 && d <= window
}
