package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/ui"
	"github.com/law-makers/catalog/internal/utils/output"
)

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row(header))
	t.SetStyle(table.StyleRounded)
	return t
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonOutput reports whether --json was passed.
func jsonOutput(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}

// export writes v (or the table rows, for .csv) to the -o path, if one was given.
func export(cmd *cobra.Command, v any, header []string, rows [][]string) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return nil
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = output.SaveJSON(v, path)
	case ".csv":
		err = output.SaveCSV(header, rows, path)
	default:
		return fmt.Errorf("unsupported output format %q (use .json or .csv)", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Saved ")+path)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatPrice(price float64, currency string) string {
	return strconv.FormatFloat(price, 'f', 2, 64) + " " + currency
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func productRows(items []catalog.ProductSummary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		rows = append(rows, []string{p.Slug, p.Title, formatPrice(p.Price, p.Currency), formatTime(p.LastScrapedAt)})
	}
	return rows
}

var productHeader = []string{"Slug", "Title", "Price", "Last scraped"}

func renderProducts(cmd *cobra.Command, v any, items []catalog.ProductSummary, pg catalog.Pagination) error {
	rows := productRows(items)
	if err := export(cmd, v, productHeader, rows); err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), v)
	}

	w := cmd.OutOrStdout()
	t := newTable(w, "Slug", "Title", "Price", "Last scraped")
	for _, r := range rows {
		t.AppendRow(table.Row{r[0], r[1], r[2], r[3]})
	}
	t.Render()
	fmt.Fprintf(w, "Page %d of %d (%d items)\n", pg.Page, pg.TotalPages, pg.TotalItems)
	return nil
}
