package services

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/us"
)

// businessCalendar builds a working-day calendar for a country code. The
// code "NONE" yields a plain Monday-to-Friday calendar with no holidays.
func businessCalendar(countryCode string) *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	switch countryCode {
	case "US":
		c.AddHoliday(us.Holidays...)
	case "GB":
		c.AddHoliday(gb.Holidays...)
	case "DE":
		c.AddHoliday(de.Holidays...)
	case "NL":
		c.AddHoliday(nl.Holidays...)
	}
	return c
}

// IsBusinessDay reports whether t falls on a working day for the given
// country's calendar.
func IsBusinessDay(t time.Time, countryCode string) bool {
	return businessCalendar(countryCode).IsWorkday(t)
}
