package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/solatis/logspec/internal/core/db"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded filter runs, newest first",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Int("limit", 20, "maximum number of runs")
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}

	conn, queries, err := db.OpenAndMigrate(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	runs, err := queries.ListRuns(limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tRECORDS\tRULES\tINFERENCE\tMATCHED/TOTAL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.RecordsSource, r.RulesSource, r.Inference, r.Matched, r.Total)
	}
	return tw.Flush()
}
