package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orderbot/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the stored session identity, creating it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, closeBackend, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeBackend()

		id, err := store.NewSessionStore(backend, logger).GetOrCreateSessionID(cmd.Context())
		if err != nil {
			logger.Warn("session identity not persisted", zap.Error(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "backend:    %s\nsession_id: %s\n", cfg.SessionBackend, id)
		return nil
	},
}
