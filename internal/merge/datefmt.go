package merge

import (
	"math"
	"time"
)

// serialEpoch is day zero of the spreadsheet serial date system.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerialDays keeps the computed date within four-digit years.
const maxSerialDays = 2958465

// SerialDateLayout renders dates as DD-Mon-YYYY.
const SerialDateLayout = "02-Jan-2006"

// FormatSerialDate renders a spreadsheet date serial as DD-Mon-YYYY.
//
// Serials above 60 are shifted one extra day to undo the fictitious 29 Feb 1900
// that the format counts. Values that are not numbers, are below 1, or land
// outside the representable range come back as their plain string form.
func FormatSerialDate(c Cell) string {
	if c.Kind != KindNumber {
		return c.String()
	}
	serial := c.Number
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 1 {
		return c.String()
	}

	days := serial - 1
	if serial > 60 {
		days--
	}
	if days > maxSerialDays {
		return c.String()
	}

	whole := math.Floor(days)
	frac := time.Duration((days - whole) * float64(24*time.Hour))
	d := serialEpoch.AddDate(0, 0, int(whole)).Add(frac)
	if d.Year() > 9999 {
		return c.String()
	}
	return d.Format(SerialDateLayout)
}
