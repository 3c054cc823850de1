package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/capturelog"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/logging"
)

const defaultRetention = 30 * 24 * time.Hour

func newPruneCmd(configPath func() string) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old capture log and audit log rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := prune(cmd.Context(), configPath(), olderThan)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d rows older than %s\n", n, olderThan)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", defaultRetention, "delete rows older than this")
	return cmd
}

func prune(ctx context.Context, configPath string, olderThan time.Duration) (int64, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return 0, err
	}
	defer db.Close() //nolint:errcheck // Read-mostly command; close error is not actionable

	captures, err := capturelog.NewSQLiteRepository(db.DB).Prune(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	audits, err := audit.NewSQLiteRepository(db.DB).Prune(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	log.Info("logs pruned", "capture_rows", captures, "audit_rows", audits, "older_than", olderThan.String())
	return captures + audits, nil
}
