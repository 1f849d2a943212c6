package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/prota/internal/email"
	"github.com/dukerupert/prota/internal/reminder"
	"github.com/dukerupert/prota/internal/store"
)

var remindTest bool

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send the reminders due this minute",
	Args:  cobra.NoArgs,
	RunE:  runRemind,
}

func init() {
	remindCmd.Flags().BoolVar(&remindTest, "test", false, "send one test email regardless of schedule")
}

func runRemind(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	reminders := store.NewReminderStore(db)
	if e.cfg.Reminders.File != "" {
		if _, err := reminder.LoadSeedFile(e.cfg.Reminders.File, reminders); err != nil {
			return err
		}
	}

	d := reminder.NewDispatcher(reminders, email.NewSender(e.cfg.Mail), nil, e.logger, reminder.Config{
		Location:  e.cfg.Location(),
		DefaultTo: e.cfg.Mail.To,
	})

	out := cmd.OutOrStdout()
	if remindTest {
		to, err := d.SendTest(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "test email sent to %s\n", to)
		return nil
	}

	res, err := d.Dispatch(cmd.Context(), time.Now())
	fmt.Fprintf(out, "slot %s: %d matched, %d sent, %d skipped, %d failed\n", res.Slot, res.Matched, res.Sent, res.Skipped, res.Failed)
	return err
}
