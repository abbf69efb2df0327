package commands

import (
	"fmt"
	"os"

	"cumulus-backend/lib/receiptdoc"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var fetchOutDir string

func init() {
	fetchCmd.Flags().StringVar(&fetchOutDir, "out", ".", "directory to write the exported html/pdf files into")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <receipt id>",
	Short: "Fetch one receipt's exported content and print its line items.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := newSession(ctx)
		if err != nil {
			return err
		}

		raw, err := client.FetchReceipt(ctx, args[0])
		if err != nil {
			return err
		}

		htmlPath := fmt.Sprintf("%s/%s.html", fetchOutDir, raw.ReceiptId)
		pdfPath := fmt.Sprintf("%s/%s.pdf", fetchOutDir, raw.ReceiptId)
		if err := os.WriteFile(htmlPath, raw.HTML, 0644); err != nil {
			return err
		}
		if err := os.WriteFile(pdfPath, raw.PDF, 0644); err != nil {
			return err
		}

		doc, err := receiptdoc.New(raw.ReceiptId, raw.HTML, raw.PDF)
		if err != nil {
			return fmt.Errorf("failed to parse receipt export: %w", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Article", "Quantity", "Price"})
		for _, item := range doc.Items {
			t.AppendRow(table.Row{item.Article, item.Quantity, item.Price})
		}
		if doc.Total != "" {
			t.AppendFooter(table.Row{"Total", "", doc.Total})
		}
		t.Render()

		fmt.Printf("wrote %s and %s\n", htmlPath, pdfPath)
		return nil
	},
}
