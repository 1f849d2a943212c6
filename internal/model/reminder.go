package model

import "time"

// Reminder is a scheduled email sent at a time of day on chosen weekdays.
type Reminder struct {
	ID           int64     `json:"id" yaml:"-"`
	Name         string    `json:"name" yaml:"name"`
	Subject      string    `json:"subject" yaml:"subject"`
	Message      string    `json:"message" yaml:"message"`
	TimeOfDay    string    `json:"timeOfDay" yaml:"time"`
	Weekdays     []int     `json:"weekdays" yaml:"weekdays"`
	Recipient    string    `json:"recipient,omitempty" yaml:"recipient"`
	Active       bool      `json:"active" yaml:"active"`
	LastSentSlot string    `json:"lastSentSlot,omitempty" yaml:"-"`
	CreatedAt    time.Time `json:"createdAt" yaml:"-"`
}

// OnWeekday reports whether the reminder fires on the given day.
func (r *Reminder) OnWeekday(d time.Weekday) bool {
	for _, w := range r.Weekdays {
		if time.Weekday(w) == d {
			return true
		}
	}
	return false
}
