package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/cafenet/internal/config"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
	"github.com/MrJamesThe3rd/cafenet/internal/storage"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "cafectl",
		Short:         "Administer the cafe inventory store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("failed to load .env", "error", err)
			}

			loaded, err := config.Load()
			if err != nil {
				return err
			}

			cfg = loaded

			return nil
		},
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// openStore opens the configured store. The memory driver is refused since
// an admin command against a fresh in-memory store changes nothing.
func openStore(ctx context.Context) (storage.Store, func() error, error) {
	if cfg.DB.Driver == config.DriverMemory {
		return nil, nil, fmt.Errorf("cafectl needs a persistent store, STORE_DRIVER is %q", cfg.DB.Driver)
	}

	return storage.Open(ctx, cfg)
}

func newLedger(store ledger.Repository) *ledger.Service {
	return ledger.NewService(store, ledger.Options{
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		HistoryLimit:      cfg.Inventory.HistoryLimit,
	})
}
