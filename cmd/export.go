package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/export"
	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/internal/store"
)

var (
	exportOut   string
	exportState string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived sessions to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		sessions, err := st.ListArchivedSessions(ctx, store.ArchiveFilter{
			State: model.SessionState(exportState),
		})
		if err != nil {
			return err
		}

		if err := export.WriteSessions(exportOut, sessions); err != nil {
			return err
		}

		zap.L().Info("exported sessions",
			zap.Int("count", len(sessions)),
			zap.String("path", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "sessions.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportState, "state", "scoped", "state filter; empty exports everything")
	rootCmd.AddCommand(exportCmd)
}
