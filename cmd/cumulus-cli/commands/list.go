package commands

import (
	"fmt"
	"os"
	"time"

	"cumulus-backend/internal/receiptstore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listFrom string
var listTo string
var listExportDb string

func init() {
	listCmd.Flags().StringVar(&listFrom, "from", "", "start of the date range (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listTo, "to", "", "end of the date range (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listExportDb, "export", "", "also write the summaries into this sqlite database")
	listCmd.MarkFlagRequired("from")
	listCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List receipts in a date range.",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse("2006-01-02", listFrom)
		if err != nil {
			return fmt.Errorf("invalid --from date: %w", err)
		}
		to, err := time.Parse("2006-01-02", listTo)
		if err != nil {
			return fmt.Errorf("invalid --to date: %w", err)
		}

		ctx := cmd.Context()
		client, err := newSession(ctx)
		if err != nil {
			return err
		}

		receipts, err := client.Receipts(ctx, from, to)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Download ID", "Receipt ID", "Store", "Cost", "Points"})
		for downloadId, r := range receipts {
			t.AppendRow(table.Row{downloadId, r.ReceiptId, r.StoreName, r.Cost, r.CumulusPoints})
		}
		t.Render()

		if listExportDb == "" {
			return nil
		}

		store, err := receiptstore.Open(listExportDb)
		if err != nil {
			return err
		}
		defer store.Close()

		err = store.Put(ctx, receipts, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("exported %d receipts to %s\n", len(receipts), listExportDb)
		return nil
	},
}
