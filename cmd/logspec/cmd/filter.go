package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/solatis/logspec/internal/core/db"
	"github.com/solatis/logspec/internal/core/ingest"
	"github.com/solatis/logspec/internal/types"
	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Write the records whose ship method applies to their destination country",
	RunE:  runFilter,
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().String("rules", "", "rule table path (default: embedded table)")
	filterCmd.Flags().String("inference", "similarity", "inference strategy (similarity, none)")
	filterCmd.Flags().String("records", "", "record file (CSV or TSV)")
	filterCmd.Flags().String("out", "-", "output path, - for stdout")
	filterCmd.Flags().String("delimiter", "", "record delimiter (comma, semicolon, tab); detected when empty")
	_ = filterCmd.MarkFlagRequired("records")
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	recordsPath, _ := cmd.Flags().GetString("records")
	outPath, _ := cmd.Flags().GetString("out")
	delimFlag, _ := cmd.Flags().GetString("delimiter")

	opts := ingest.Options{MaxBytes: types.MaxRecordFileSize}
	if delimFlag != "" {
		if opts.Delimiter, err = ingest.ParseDelimiter(delimFlag); err != nil {
			return err
		}
	}

	engine, _, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}

	table, err := ingest.ReadFile(recordsPath, opts)
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}

	res, snap := engine.Filter(table.Records)

	if err := writeFiltered(cmd.OutOrStdout(), outPath, table, res.Records); err != nil {
		return err
	}

	fields := logrus.Fields{
		"records":  recordsPath,
		"load_id":  snap.LoadID,
		"total":    res.Total,
		"matched":  res.Matched(),
		"replaced": table.Replaced,
	}

	if dbURL != "" {
		run, err := recordRun(db.FilterRun{
			LoadID:        snap.LoadID,
			RulesSource:   snap.Source,
			Checksum:      snap.Lookup.Checksum(),
			Inference:     engine.InferenceName(),
			RecordsSource: recordsPath,
			Total:         res.Total,
			Matched:       res.Matched(),
		})
		if err != nil {
			return err
		}
		fields["run_id"] = run.RunID
	}

	log.WithFields(fields).Info("filter complete")
	return nil
}

// writeFiltered writes records to path, or to stdout when path is "-" or empty.
func writeFiltered(stdout io.Writer, path string, table *ingest.Table, records []types.Record) error {
	if path == "-" || path == "" {
		if err := ingest.WriteCSV(stdout, table.Delimiter, table.Header, records); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := ingest.WriteCSV(f, table.Delimiter, table.Header, records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return nil
}

func recordRun(run db.FilterRun) (db.FilterRun, error) {
	conn, queries, err := db.OpenAndMigrate(dbURL)
	if err != nil {
		return db.FilterRun{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	recorded, err := queries.RecordRun(run)
	if err != nil {
		return db.FilterRun{}, fmt.Errorf("failed to record run: %w", err)
	}
	return recorded, nil
}
