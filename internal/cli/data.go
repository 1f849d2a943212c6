package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dukerupert/prota/internal/snapshot"
	"github.com/dukerupert/prota/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a snapshot or legacy data.json into the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write a snapshot of all data as JSON (stdout when no file)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func openStores(e *env) (snapshot.Stores, func(), error) {
	db, err := e.openDB()
	if err != nil {
		return snapshot.Stores{}, nil, err
	}
	return snapshot.Stores{
		Objectives: store.NewObjectiveStore(db),
		Tasks:      store.NewTaskStore(db),
		Points:     store.NewPointsStore(db),
		Reminders:  store.NewReminderStore(db),
		Settings:   store.NewSettingsStore(db),
	}, func() { db.Close() }, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	doc, err := snapshot.Decode(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	stores, closeDB, err := openStores(e)
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := snapshot.Import(stores, doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d objectives, %d tasks, %d reminders (%d orphan tasks skipped)\n",
		stats.Objectives, stats.Tasks, stats.Reminders, stats.SkippedTasks)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	stores, closeDB, err := openStores(e)
	if err != nil {
		return err
	}
	defer closeDB()

	doc, err := snapshot.Export(stores)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	fs := snapshot.NewFileStore(filepath.Dir(args[0]))
	if err := fs.Save(filepath.Base(args[0]), doc); err != nil {
		return err
	}
	e.logger.Info("exported snapshot", "file", args[0], "objectives", len(doc.Objectives), "tasks", len(doc.Tasks))
	return nil
}
