package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/prota/internal/email"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/store"
	"github.com/dukerupert/prota/internal/websocket"
)

// SlotLayout identifies one scheduled minute in the configured timezone.
const SlotLayout = "2006-01-02T15:04"

// Notifier receives change notifications.
type Notifier interface {
	Publish(entity, action string, id int64, extra map[string]any)
}

// Result summarises one dispatch pass.
type Result struct {
	Slot    string `json:"slot"`
	Matched int    `json:"matched"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Dispatcher sends reminder emails whose time of day and weekday match
// the current minute. Each reminder is sent at most once per slot.
type Dispatcher struct {
	reminders *store.ReminderStore
	sender    email.Sender
	loc       *time.Location
	defaultTo string
	notify    Notifier
	logger    *slog.Logger
	interval  time.Duration

	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Config struct {
	Location  *time.Location
	DefaultTo string
	Interval  time.Duration
}

func NewDispatcher(reminders *store.ReminderStore, sender email.Sender, notify Notifier, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Dispatcher{
		reminders: reminders,
		sender:    sender,
		loc:       cfg.Location,
		defaultTo: cfg.DefaultTo,
		notify:    notify,
		logger:    logger,
		interval:  cfg.Interval,
	}
}

// Due returns the active reminders scheduled for now's minute and weekday.
func (d *Dispatcher) Due(now time.Time) ([]model.Reminder, error) {
	local := now.In(d.loc)
	clock := local.Format("15:04")

	active, err := d.reminders.ListActive()
	if err != nil {
		return nil, err
	}

	var due []model.Reminder
	for _, r := range active {
		if r.TimeOfDay == clock && r.OnWeekday(local.Weekday()) {
			due = append(due, r)
		}
	}
	return due, nil
}

// Dispatch sends every reminder due at now. Reminders already sent for
// this slot are skipped. A failed send releases its claim so a later pass
// in the same minute can retry.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) (Result, error) {
	res := Result{Slot: now.In(d.loc).Format(SlotLayout)}

	due, err := d.Due(now)
	if err != nil {
		return res, fmt.Errorf("find due reminders: %w", err)
	}
	res.Matched = len(due)
	if len(due) == 0 {
		return res, nil
	}
	if d.sender == nil || !d.sender.Configured() {
		return res, email.ErrNotConfigured
	}

	var errs []error
	for _, r := range due {
		claimed, err := d.reminders.ClaimSlot(r.ID, res.Slot)
		if err != nil {
			errs = append(errs, err)
			res.Failed++
			continue
		}
		if !claimed {
			res.Skipped++
			continue
		}

		if err := d.send(ctx, r); err != nil {
			d.logger.Error("send reminder", "reminder", r.Name, "slot", res.Slot, "error", err)
			if relErr := d.reminders.ReleaseSlot(r.ID, res.Slot, r.LastSentSlot); relErr != nil {
				d.logger.Error("release reminder slot", "reminder", r.Name, "error", relErr)
			}
			errs = append(errs, fmt.Errorf("reminder %q: %w", r.Name, err))
			res.Failed++
			continue
		}

		res.Sent++
		d.logger.Info("sent reminder", "reminder", r.Name, "slot", res.Slot)
		if d.notify != nil {
			d.notify.Publish(websocket.EntityReminder, "sent", r.ID, map[string]any{"slot": res.Slot})
		}
	}
	return res, errors.Join(errs...)
}

// SendTest sends the first stored reminder, or a canned message when none
// exist, ignoring schedules.
func (d *Dispatcher) SendTest(ctx context.Context) (string, error) {
	if d.sender == nil || !d.sender.Configured() {
		return "", email.ErrNotConfigured
	}

	all, err := d.reminders.List()
	if err != nil {
		return "", err
	}

	r := model.Reminder{
		Name:    "test",
		Subject: "TEST - prota reminder",
		Message: "This is a test message sent without checking schedules.",
	}
	if len(all) > 0 {
		r = all[0]
	}

	if err := d.send(ctx, r); err != nil {
		return "", err
	}
	return d.recipient(r), nil
}

func (d *Dispatcher) recipient(r model.Reminder) string {
	if r.Recipient != "" {
		return r.Recipient
	}
	return d.defaultTo
}

func (d *Dispatcher) send(ctx context.Context, r model.Reminder) error {
	to := d.recipient(r)
	if to == "" {
		return errors.New("no recipient configured")
	}
	return d.sender.Send(ctx, email.Message{
		To:      to,
		Subject: r.Subject,
		Text:    r.Message,
	})
}

// Start runs Dispatch on every tick until Stop or ctx cancellation.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				d.tick(ctx, now)
			}
		}
	}()
}

// Stop gracefully stops the loop.
func (d *Dispatcher) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	done := d.done
	d.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (d *Dispatcher) tick(ctx context.Context, now time.Time) {
	res, err := d.Dispatch(ctx, now)
	switch {
	case errors.Is(err, email.ErrNotConfigured):
		d.logger.Warn("reminders due but mail is not configured", "matched", res.Matched, "slot", res.Slot)
	case err != nil:
		d.logger.Error("dispatch reminders", "error", err, "sent", res.Sent, "failed", res.Failed)
	case res.Matched > 0:
		d.logger.Debug("dispatched reminders", "slot", res.Slot, "sent", res.Sent, "skipped", res.Skipped)
	}
}
