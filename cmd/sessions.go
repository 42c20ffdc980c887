package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/internal/store"
)

var (
	sessionsState    string
	sessionsPlatform string
	sessionsLimit    int
	sessionsJSON     bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived scoping sessions",
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
			State:    model.SessionState(sessionsState),
			Platform: sessionsPlatform,
			Limit:    sessionsLimit,
		})
		if err != nil {
			return err
		}

		if sessionsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sessions)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THREAD\tPLATFORM\tSTATE\tTURNS\tARCHIVED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				s.ThreadID, s.Platform, s.State, s.TurnCount, s.ArchivedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsState, "state", "", "filter by state (scoped, abandoned)")
	sessionsCmd.Flags().StringVar(&sessionsPlatform, "platform", "", "filter by platform")
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "maximum rows")
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(sessionsCmd)
}
