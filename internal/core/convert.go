package core

// convert.go normalizes the messy text users put in money and date cells:
//   - Currency symbols and thousands separators in amounts
//   - Multiple date formats (US, EU, ISO) with 2-digit year pivoting
//   - Excel formula prefixes (="value") and stray quotes

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidMoney is returned when an amount is not a plain non-negative decimal.
	ErrInvalidMoney = errors.New("invalid money format")

	// ErrMoneyPrecision is returned when an amount has more than 2 fractional digits.
	ErrMoneyPrecision = errors.New("more than 2 decimal places")

	// ErrInvalidDate is returned when a date matches none of the accepted layouts.
	ErrInvalidDate = errors.New("invalid date")
)

// moneyRegex accepts unsigned decimals only; signs are rejected so negatives fail.
var moneyRegex = regexp.MustCompile(`^(\d+(\.\d+)?|\.\d+)$`)

var hundred = decimal.NewFromInt(100)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339,
	}
)

// ParseMoney parses a non-negative amount with at most 2 fractional digits.
// Currency symbols and thousands separators are stripped first.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = CleanCell(s)
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)

	if !moneyRegex.MatchString(s) {
		return decimal.Zero, ErrInvalidMoney
	}

	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidMoney
	}

	if !d.Mul(hundred).Equal(d.Mul(hundred).Floor()) {
		return decimal.Zero, ErrMoneyPrecision
	}

	return d, nil
}

// ParseDate parses a date in any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
