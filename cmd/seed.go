package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/retrieval"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Index past projects into the retrieval backend",
	Long:  "Embeds past project summaries and upserts them into the Qdrant collection used for similar-project recommendations. Without --file, a small built-in sample set is indexed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("seed"); err != nil {
			return err
		}

		index, err := initIndex()
		if err != nil {
			return err
		}
		defer index.Close()

		projects := retrieval.SampleProjects()
		if seedFile != "" {
			projects, err = retrieval.LoadProjectsFile(seedFile)
			if err != nil {
				return err
			}
		}

		if err := retrieval.Seed(cmd.Context(), index, projects); err != nil {
			return err
		}

		zap.L().Info("seeded past projects",
			zap.Int("count", len(projects)),
			zap.String("collection", cfg.Qdrant.Collection),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML file of past projects (default built-in samples)")
	rootCmd.AddCommand(seedCmd)
}
