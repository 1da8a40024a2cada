package annotate

import (
	"fmt"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

// Date is a calendar decomposition of a timestamp.
type Date struct {
	Year    int
	Month   time.Month
	Day     int
	YearDay int
}

// Calendar decomposes timestamps into calendar dates.
type Calendar interface {
	Date(t time.Time) Date
}

// LocationCalendar evaluates dates in a fixed time zone.
type LocationCalendar struct {
	Location *time.Location
}

// UTC is the calendar used when none is supplied.
var UTC Calendar = LocationCalendar{Location: time.UTC}

// Date implements Calendar.
func (c LocationCalendar) Date(t time.Time) Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return Date{
		Year:    t.Year(),
		Month:   t.Month(),
		Day:     t.Day(),
		YearDay: t.YearDay(),
	}
}

// Locale holds the month names and the two date templates.
//
// DateFormat receives (month name, day). DateFormatWithYear receives
// (month name, day, year). Use explicit argument indexes ("%[2]d") to
// reorder them.
type Locale struct {
	MonthNames         []string `yaml:"month_names"`
	DateFormat         string   `yaml:"date_format"`
	DateFormatWithYear string   `yaml:"date_format_with_year"`
}

// DefaultLocale returns English month names with "January 2" and
// "January 2, 2006" style templates.
func DefaultLocale() Locale {
	return Locale{
		MonthNames: []string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		DateFormat:         "%s %d",
		DateFormatWithYear: "%s %d, %d",
	}
}

// Validate checks that there are exactly 12 month names and both templates are set.
func (l Locale) Validate() error {
	if len(l.MonthNames) != 12 {
		return &errors.ValidationError{
			Field:   "month_names",
			Value:   fmt.Sprint(len(l.MonthNames)),
			Message: "need exactly 12 month names",
		}
	}
	if l.DateFormat == "" || l.DateFormatWithYear == "" {
		return errors.NewValidation("date_format", "both date templates are required")
	}
	return nil
}

// FormatDate renders d, adding the year only when it differs from nowYear.
func (l Locale) FormatDate(d Date, nowYear int) string {
	month := l.MonthNames[d.Month-1]
	if d.Year == nowYear {
		return fmt.Sprintf(l.DateFormat, month, d.Day)
	}
	return fmt.Sprintf(l.DateFormatWithYear, month, d.Day, d.Year)
}
