// Package ledger provides the core types and algorithms of the cash-flow
// engine: accounts, subscriptions, transactions, the payment-date simulator,
// and the transaction factory. It has no knowledge of budgets, forecasting,
// or HTTP — those live in sibling packages that consume this one.
package ledger

import "time"

// Date is a calendar day with no time-of-day component. All dates in the
// ledger (purchase date, payment date, subscription anchors) are Dates, not
// timestamps — the engine never reasons about hours or timezones.
type Date struct {
	t time.Time
}

// NewDate constructs a Date, clamping an overflowing day to the last valid
// day of the target month (e.g. NewDate(2026, time.February, 30) -> Feb 28).
func NewDate(year int, month time.Month, day int) Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses an ISO-8601 "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{t: t}, nil
}

func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON renders a Date as its "YYYY-MM-DD" string, the same form
// used across the HTTP surface and CSV export.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses a quoted "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }

// AddMonths adds n calendar months, clamping day overflow to month-end
// (e.g. Jan 31 + 1 month = Feb 28/29, never rolls into March).
func (d Date) AddMonths(n int) Date {
	y, m, _ := d.t.Date()
	total := int(m) - 1 + n
	y += total / 12
	m = time.Month(total%12 + 1)
	if m <= 0 {
		m += 12
		y--
	}
	return NewDate(y, m, d.Day())
}

func (d Date) AddDays(n int) Date {
	t := d.t.AddDate(0, 0, n)
	return Date{t: t}
}

// WithDay returns the same year/month as d but with the given day, clamped
// to the last valid day of that month. Used to project a subscription's
// anchor day-of-month onto an arbitrary month.
func (d Date) WithDay(day int) Date {
	return NewDate(d.Year(), d.Month(), day)
}

// MonthOf truncates a date to the first of its month. This is the "month
// key" used throughout the engine (allocations, forecasts, horizons).
func (d Date) MonthOf() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// EndOfMonth returns the last day of d's month.
func (d Date) EndOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 32) // clamps to month-end
}

// NextMonth returns the first of the following month.
func (d Date) NextMonth() Date {
	return d.MonthOf().AddMonths(1)
}

// DaysBetween returns the signed number of calendar days from `from` to
// `to` (negative if `to` precedes `from`). Used to shift every sibling of a
// group by the same offset on a date-change (spec.md §4.4.2/§4.4.5).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// MonthsBetween returns the integer number of calendar months between two
// month-truncated dates (to >= from assumed for forecast ranges, but works
// either direction).
func MonthsBetween(from, to Date) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// MonthRange returns every month-of (first-of-month Date) from start to end
// inclusive. Both are truncated to their month first.
func MonthRange(start, end Date) []Date {
	start = start.MonthOf()
	end = end.MonthOf()
	if start.After(end) {
		return nil
	}
	n := MonthsBetween(start, end)
	out := make([]Date, 0, n+1)
	cur := start
	for i := 0; i <= n; i++ {
		out = append(out, cur)
		cur = cur.AddMonths(1)
	}
	return out
}
