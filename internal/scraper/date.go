package scraper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"top8scraper/internal/normalize"
)

// Site dates are day/month/two-digit-year; single-digit day and month are accepted too.
const dateLayout = "2/1/06"

type DateFormatError struct {
	Value string
	Err   error
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid event date %q: %v", e.Value, e.Err)
}

func (e *DateFormatError) Unwrap() error {
	return e.Err
}

// ParseDate parses a DD/MM/YY date into a UTC midnight time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, &DateFormatError{Value: value, Err: err}
	}
	return t, nil
}

// ParsePlayersAndDate splits "24 players - 05/03/21" into a player count and a date.
// A bare "05/03/21" yields a nil player count.
func ParsePlayersAndDate(segment string) (*int, time.Time, error) {
	parts := strings.Split(strings.ReplaceAll(segment, "players", ""), "-")

	var players *int
	dateStr := parts[0]
	if len(parts) == 2 {
		countStr := normalize.Text(parts[0])
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("invalid player count %q: %w", countStr, err)
		}
		players = &n
		dateStr = parts[1]
	}

	date, err := ParseDate(dateStr)
	if err != nil {
		return nil, time.Time{}, err
	}
	return players, date, nil
}
