package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List registered faces",
	Long:  `Lists the most recent face records in the configured store, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.Flags().Int("limit", 20, "Maximum number of records to show")
}

func runRecords(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.backend.List(ctx, store.ListOptions{Limit: mustGetInt(cmd, "limit")}.Normalize())
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	total, err := st.backend.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tTIMESTAMP")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Label, store.FormatTimestamp(r.CapturedAt))
	}
	w.Flush()

	fmt.Printf("\nShowing %d of %d record(s)\n", len(records), total)
	return nil
}
