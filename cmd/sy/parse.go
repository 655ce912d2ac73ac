package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// parseAmount splits "2 weeks" into its value and unit. Units are checked
// by the store.
func parseAmount(s string) (int, string, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("expected \"<n> <unit>\", got %q", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid amount %q: %w", fields[0], err)
	}
	return n, fields[1], nil
}

// parseDate reads a YYYY-MM-DD date, or a full RFC 3339 timestamp, in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func parseOptionalDate(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
