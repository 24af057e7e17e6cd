package photos

import (
	"fmt"
	"time"
)

// Date is a calendar date as understood by the Photos date filter
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// QueryWindow is an inclusive range of calendar dates
type QueryWindow struct {
	Start Date
	End   Date
}

func (w QueryWindow) String() string {
	return w.Start.String() + ".." + w.End.String()
}

// NewQueryWindow returns the window ending on ref's date and starting the
// given number of years, months and days earlier. Years and months are
// subtracted first, clamping the day to the length of the target month;
// days are subtracted last.
func NewQueryWindow(ref time.Time, years, months, days int) QueryWindow {
	start := subtractMonths(ref, years*12+months).AddDate(0, 0, -days)
	return QueryWindow{Start: DateOf(start), End: DateOf(ref)}
}

// subtractMonths moves t back n calendar months, keeping the day unless the
// target month is shorter
func subtractMonths(t time.Time, n int) time.Time {
	if n == 0 {
		return t
	}

	index := t.Year()*12 + int(t.Month()) - 1 - n
	year, month := index/12, time.Month(index%12+1)

	day := t.Day()
	if last := daysIn(year, month, t.Location()); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
