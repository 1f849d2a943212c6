package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/prota/internal/model"
)

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

func scanReminder(scanner interface{ Scan(...any) error }) (*model.Reminder, error) {
	var r model.Reminder
	var weekdays string
	var active int

	err := scanner.Scan(
		&r.ID, &r.Name, &r.Subject, &r.Message, &r.TimeOfDay, &weekdays,
		&r.Recipient, &active, &r.LastSentSlot, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	r.Weekdays = parseWeekdays(weekdays)
	return &r, nil
}

const reminderCols = `id, name, subject, message, time_of_day, weekdays, recipient, active, last_sent_slot, created_at`

func formatWeekdays(days []int) string {
	if len(days) == 0 {
		return "0,1,2,3,4,5,6"
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func parseWeekdays(s string) []int {
	var days []int
	for _, p := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d < 0 || d > 6 {
			continue
		}
		days = append(days, d)
	}
	return days
}

func (s *ReminderStore) Create(r model.Reminder) (*model.Reminder, error) {
	result, err := s.db.Exec(
		`INSERT INTO reminders (name, subject, message, time_of_day, weekdays, recipient, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.Subject, r.Message, r.TimeOfDay, formatWeekdays(r.Weekdays), r.Recipient,
		boolToInt(r.Active), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ReminderStore) GetByID(id int64) (*model.Reminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderCols+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderStore) List() ([]model.Reminder, error) {
	return s.list(`SELECT ` + reminderCols + ` FROM reminders ORDER BY time_of_day ASC, id ASC`)
}

func (s *ReminderStore) ListActive() ([]model.Reminder, error) {
	return s.list(`SELECT ` + reminderCols + ` FROM reminders WHERE active = 1 ORDER BY time_of_day ASC, id ASC`)
}

func (s *ReminderStore) list(query string) ([]model.Reminder, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

func (s *ReminderStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByName creates the reminder or overwrites the one with the same
// name. The last sent slot is preserved so reseeding does not resend.
func (s *ReminderStore) UpsertByName(r model.Reminder) (*model.Reminder, error) {
	_, err := s.db.Exec(
		`INSERT INTO reminders (name, subject, message, time_of_day, weekdays, recipient, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET subject = excluded.subject, message = excluded.message,
		 time_of_day = excluded.time_of_day, weekdays = excluded.weekdays,
		 recipient = excluded.recipient, active = excluded.active`,
		r.Name, r.Subject, r.Message, r.TimeOfDay, formatWeekdays(r.Weekdays), r.Recipient,
		boolToInt(r.Active), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert reminder %q: %w", r.Name, err)
	}

	row := s.db.QueryRow(`SELECT `+reminderCols+` FROM reminders WHERE name = ?`, r.Name)
	out, err := scanReminder(row)
	if err != nil {
		return nil, fmt.Errorf("get reminder %q: %w", r.Name, err)
	}
	return out, nil
}

// ClaimSlot records slot as sent for the reminder. It reports false when
// the slot was already claimed, which gives at-most-once delivery per slot.
func (s *ReminderStore) ClaimSlot(id int64, slot string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reminders SET last_sent_slot = ? WHERE id = ? AND last_sent_slot <> ?`,
		slot, id, slot,
	)
	if err != nil {
		return false, fmt.Errorf("claim reminder slot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseSlot rolls a claim back to previous, as long as nobody claimed a
// newer slot in between.
func (s *ReminderStore) ReleaseSlot(id int64, slot, previous string) error {
	_, err := s.db.Exec(
		`UPDATE reminders SET last_sent_slot = ? WHERE id = ? AND last_sent_slot = ?`,
		previous, id, slot,
	)
	if err != nil {
		return fmt.Errorf("release reminder slot: %w", err)
	}
	return nil
}
