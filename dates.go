package xsearch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateWindow is an inclusive local-date range evaluated in a fixed zone.
type DateWindow struct {
	Start Date
	End   Date
	Zone  *time.Location
}

// ParseCLIDate parses the YYYY_M_D command-line format (no zero padding).
func ParseCLIDate(raw string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date format %q, expected YYYY_M_D", raw)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date format %q, expected YYYY_M_D", raw)
		}
		nums[i] = n
	}
	d := Date{Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	// Reject normalizing inputs like 2021_2_30.
	if t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC); t.Year() != d.Year || t.Month() != d.Month || t.Day() != d.Day {
		return Date{}, fmt.Errorf("invalid calendar date %q", raw)
	}
	return d, nil
}

// ISO renders the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Before reports d < other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports d > other.
func (d Date) After(other Date) bool { return other.Before(d) }

// xCreatedAtLayout is X's legacy created_at format.
const xCreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// ParseCreatedAt parses an X created_at timestamp and normalizes it to UTC.
func ParseCreatedAt(raw string) (time.Time, error) {
	t, err := time.Parse(xCreatedAtLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// LoadZone resolves an IANA timezone name. Asia/Shanghai degrades to a fixed
// UTC+8 zone on hosts without tzdata.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Asia/Shanghai" {
		return time.FixedZone("Asia/Shanghai", 8*3600), nil
	}
	return nil, fmt.Errorf("load timezone %q: %w", name, err)
}

// LocalDate projects a UTC instant onto the window's zone and returns its
// calendar date.
func (w DateWindow) LocalDate(ts time.Time) Date {
	local := ts.In(w.Zone)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// Contains reports whether the instant falls inside [Start, End] in the
// window's zone.
func (w DateWindow) Contains(ts time.Time) bool {
	d := w.LocalDate(ts)
	return !d.Before(w.Start) && !d.After(w.End)
}
