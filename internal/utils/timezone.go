package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var displayLocation atomic.Pointer[time.Location]

func init() {
	displayLocation.Store(time.UTC)
}

// SetDisplayLocation changes the zone used when timestamps are shown to people.
// Storage always stays in UTC.
func SetDisplayLocation(name string) error {
	if name == "" {
		displayLocation.Store(time.UTC)
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	displayLocation.Store(loc)
	return nil
}

func DisplayLocation() *time.Location {
	return displayLocation.Load()
}

// FormatPollTime formats a stored time for poll listings.
// Format: "HH:MM DD.MM.YYYY ZONE"
func FormatPollTime(t time.Time) string {
	return t.In(DisplayLocation()).Format("15:04 02.01.2006 MST")
}

// FormatPollDate formats a stored time as a short date (DD.MM.YYYY).
func FormatPollDate(t time.Time) string {
	return t.In(DisplayLocation()).Format("02.01.2006")
}
