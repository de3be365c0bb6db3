// Package reports holds the weekly attendance data pipeline: church week
// math, the SQLite store, CSV report files and PNG trend charts.
package reports

import (
	"fmt"
	"regexp"
	"time"
)

// ChurchWeek identifies one reporting week. Weeks start on Sunday; Sunday
// is the date all files and rows are keyed by.
type ChurchWeek struct {
	Year   int
	Week   int
	Sunday time.Time
}

// WeekOf returns the church week containing the given date: the Sunday at
// or before it, with a Sunday-first week-of-year number (days before the
// year's first Sunday count as week 0).
func WeekOf(date time.Time) ChurchWeek {
	y, m, d := date.Date()
	date = time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	sunday := date.AddDate(0, 0, -int(date.Weekday()))
	week := (sunday.YearDay() - 1 + 7 - int(sunday.Weekday())) / 7
	return ChurchWeek{
		Year:   sunday.Year(),
		Week:   week,
		Sunday: sunday,
	}
}

// SundayStr formats the week key used in filenames and store rows.
func (w ChurchWeek) SundayStr() string {
	return w.Sunday.Format("2006-01-02")
}

func (w ChurchWeek) String() string {
	return fmt.Sprintf("%d 年 第 %d 週 (%s)", w.Year, w.Week, w.SundayStr())
}

var fileDatePattern = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)

// ParseWeekEndDate extracts the week date embedded in a report filename,
// e.g. attend_2025-12-08.csv or summary_2025-12-08.csv.
func ParseWeekEndDate(filename string) (time.Time, bool) {
	m := fileDatePattern.FindString(filename)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-1-2", m)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
