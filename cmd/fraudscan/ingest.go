package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eargollo/fraudscan/internal/ingest"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load transactions from a CSV file as unprocessed",
		Long: `Load transactions from a CSV file. Each record is
amount[,timestamp[,card_number_encrypted]]; a header row is skipped.
Timestamps may be RFC 3339, "YYYY-MM-DD HH:MM:SS" or unix seconds.`,
		RunE: runIngest,
	}
	cmd.Flags().StringP("file", "f", "", "CSV file to load (required)")
	cmd.Flags().Bool("clear", false, "delete all stored transactions first")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("file")
	clearFirst, _ := cmd.Flags().GetBool("clear")

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := ingest.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	database, st, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	if clearFirst {
		n, err := st.ClearTransactions(ctx)
		if err != nil {
			return err
		}
		slog.Info("transactions cleared", "count", n)
	}
	n, err := st.InsertTransactions(ctx, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d transactions from %s\n", n, path)
	return nil
}
