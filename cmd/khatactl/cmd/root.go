// Package cmd implements khatactl, an operator CLI that reads and writes
// party ledgers directly against the configured store.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khata-ledger/khata/internal/book"
	"github.com/khata-ledger/khata/internal/config"
	"github.com/khata-ledger/khata/internal/infra"
	"github.com/khata-ledger/khata/internal/logging"
	"github.com/khata-ledger/khata/internal/party"
)

// rootConfig carries the persistent flags shared by every subcommand.
type rootConfig struct {
	store      string
	sqlitePath string
	dbURL      string
	logLevel   string
}

// session is an opened store plus the services built on it.
type session struct {
	cfg      config.Config
	backends *infra.Backends
	parties  *party.Service
	book     *book.Service
}

func (s *session) Close() error { return s.backends.Close() }

// NewRootCmd builds the khatactl command tree.
func NewRootCmd() *cobra.Command {
	rc := &rootConfig{}
	cmd := &cobra.Command{
		Use:   "khatactl",
		Short: "Inspect and maintain party ledgers",
		Long: `khatactl works directly against the ledger store configured for the API
(STORE_DRIVER, SQLITE_PATH, DATABASE_URL), or the one given by flags.

Examples:
  khatactl parties create --name "Ali Traders" --number 0300-1234567 --address "Main Bazaar"
  khatactl parties --q ali
  khatactl view <party-id> --currency PKR
  khatactl export <party-id> -o ledger.csv
  khatactl add <party-id> --kind credit --amount 150 --description "opening"`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&rc.store, "store", "", "store driver: memory, postgres or sqlite (default from env)")
	cmd.PersistentFlags().StringVar(&rc.sqlitePath, "sqlite", "", "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&rc.dbURL, "database-url", "", "PostgreSQL connection URL")
	cmd.PersistentFlags().StringVar(&rc.logLevel, "log-level", "error", "log level")

	cmd.AddCommand(
		newPartiesCmd(rc),
		newViewCmd(rc),
		newExportCmd(rc),
		newAddCmd(rc),
	)
	return cmd
}

func (rc *rootConfig) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rc.store != "" {
		cfg.StoreDriver = rc.store
	}
	if rc.sqlitePath != "" {
		cfg.SQLitePath = rc.sqlitePath
	}
	if rc.dbURL != "" {
		cfg.DatabaseURL = rc.dbURL
	}
	// The CLI never publishes events or needs the idempotency cache.
	cfg.RedisURL = ""
	cfg.KafkaBrokers = nil

	logger := logging.NewText(os.Stderr, rc.logLevel)
	backends, err := infra.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &session{
		cfg:      cfg,
		backends: backends,
		parties:  party.NewService(backends.Parties, logger, cfg.StoreTimeout),
		book:     book.NewService(backends.Parties, backends.Entries, backends.Notifier, logger, cfg.StoreTimeout),
	}, nil
}
