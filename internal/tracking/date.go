package tracking

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in requests and record keys.
const DateLayout = "2006-01-02"

// ErrInvalidDate reports a date that is not a real YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD")

// ParseDate validates s and returns it in canonical form. Surrounding
// whitespace is rejected like any other malformed input.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t.Format(DateLayout), nil
}

// Today returns now's calendar date in now's location.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}
