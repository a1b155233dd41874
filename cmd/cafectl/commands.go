package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/cafenet/internal/backup"
	"github.com/MrJamesThe3rd/cafenet/internal/http/auth"
)

var (
	forceRestore bool
	tokenSubject string
	tokenRole    string

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables in the configured database",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Manage snapshot backups",
	}
	backupCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Write a backup now",
		Args:  cobra.NoArgs,
		RunE:  runBackupCreate,
	}
	backupListCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List backups, newest first",
		Args:    cobra.NoArgs,
		RunE:    runBackupList,
	}
	backupRestoreCmd = &cobra.Command{
		Use:   "restore [name]",
		Short: "Replace all store contents with a backup",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackupRestore,
	}

	purgeCmd = &cobra.Command{
		Use:   "purge-empty",
		Short: "Remove products with zero quantity (cannot be undone)",
		Args:  cobra.NoArgs,
		RunE:  runPurgeEmpty,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with AUTH_SECRET",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}
)

func init() {
	backupRestoreCmd.Flags().BoolVar(&forceRestore, "force", false, "confirm that current data will be replaced")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "operator or till the token is issued to")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "cashier", "role claim")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(migrateCmd, backupCmd, purgeCmd, tokenCmd)
}

// storage.Open migrates the postgres schema as part of opening.
func runMigrate(cmd *cobra.Command, _ []string) error {
	_, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Fprintf(cmd.OutOrStdout(), "schema of %s is up to date\n", cfg.DB.Name)

	return nil
}

func newCoordinator(src backup.Source) *backup.Coordinator {
	return backup.NewCoordinator(src, backup.Config{
		Dir:      cfg.Backup.Dir,
		Interval: cfg.Backup.Interval,
		Retain:   cfg.Backup.Retain,
	})
}

func runBackupCreate(cmd *cobra.Command, _ []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	path, err := newCoordinator(store).BackupNow(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)

	return nil
}

// Listing only reads the backup directory and needs no store.
func runBackupList(cmd *cobra.Command, _ []string) error {
	files, err := newCoordinator(nil).List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no backups in %s\n", cfg.Backup.Dir)
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "CREATED", "SIZE")

	for _, f := range files {
		t.Row(f.Name, humanize.Time(f.CreatedAt), humanize.Bytes(uint64(f.Size)))
	}

	fmt.Fprintln(cmd.OutOrStdout(), t.Render())

	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	if !forceRestore {
		return errors.New("restore replaces every product, sale and undo entry; rerun with --force")
	}

	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	path, err := newCoordinator(store).Resolve(args[0])
	if err != nil {
		return err
	}

	snap, err := backup.Restore(cmd.Context(), store, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "restored %d products and %d sales from %s\n",
		len(snap.Products), len(snap.Sales), args[0])

	return nil
}

func runPurgeEmpty(cmd *cobra.Command, _ []string) error {
	store, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := newLedger(store).PurgeEmpty(cmd.Context())
	for _, p := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "removed #%d %s\n", p.ID, p.Name)
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d products removed\n", len(removed))

	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	if cfg.Auth.Secret == "" {
		return errors.New("AUTH_SECRET is not set")
	}

	token, err := auth.New(cfg.Auth.Secret, cfg.Auth.TokenTTL).GenerateToken(tokenSubject, tokenRole)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)

	return nil
}
