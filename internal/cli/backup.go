package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/prota/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted snapshot to S3-compatible storage",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

var backupOpenCmd = &cobra.Command{
	Use:   "open <archive>",
	Short: "Decrypt a downloaded archive and print the snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupOpen,
}

func init() {
	backupCmd.AddCommand(backupOpenCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	if !e.cfg.BackupConfigured() {
		return errors.New("backup not configured: set backup.bucket, access_key, secret_key and passphrase")
	}

	stores, closeDB, err := openStores(e)
	if err != nil {
		return err
	}
	defer closeDB()

	m := backup.NewManager(e.cfg.Backup, stores, e.logger, nil)
	archive, err := m.RunNow(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", archive.Key, archive.Size)
	return nil
}

func runBackupOpen(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	if e.cfg.Backup.Passphrase == "" {
		return errors.New("backup.passphrase is not set")
	}

	sealed, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	doc, err := backup.Open(sealed, e.cfg.Backup.Passphrase)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
