package reminder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukerupert/prota/internal/model"
)

// ParseTimeOfDay normalizes "8:00", "08:00" or "0800" to "08:00".
func ParseTimeOfDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	var hh, mm string
	if h, m, ok := strings.Cut(s, ":"); ok {
		hh, mm = h, m
	} else if len(s) == 3 || len(s) == 4 {
		hh, mm = s[:len(s)-2], s[len(s)-2:]
	} else {
		return "", fmt.Errorf("invalid time of day %q", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || m < 0 || m > 59 {
		return "", fmt.Errorf("invalid minute in %q", s)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// Validate normalizes r in place and reports the first problem found.
// Weekdays default to every day.
func Validate(r *model.Reminder) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Subject = strings.TrimSpace(r.Subject)
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Subject == "" {
		return errors.New("subject is required")
	}

	tod, err := ParseTimeOfDay(r.TimeOfDay)
	if err != nil {
		return err
	}
	r.TimeOfDay = tod

	if len(r.Weekdays) == 0 {
		r.Weekdays = []int{0, 1, 2, 3, 4, 5, 6}
	}
	for _, d := range r.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday %d out of range 0-6", d)
		}
	}
	return nil
}
