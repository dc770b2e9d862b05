package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/scraper"
	"github.com/law-makers/catalog/internal/ui"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape pages into the store",
	}
	cmd.AddCommand(newScrapeProductsCmd())
	return cmd
}

func newScrapeProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products <slug>...",
		Short: "Scrape product detail pages in paced batches",
		Long: `Scrape the detail pages of the given products in batches, pausing
between items and batches, and store each result.`,
		Example: `  catalog scrape products the-hobbit-9780261103344 dune-9780340960196
  catalog scrape products $(cat slugs.txt) --batch-size 5 --delay 3s -o results.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			opts := scraper.DefaultBatchOptions()
			if e.cfg != nil {
				opts = scraper.BatchOptions{Size: e.cfg.BatchSize, Delay: e.cfg.BatchDelay, Jitter: e.cfg.BatchJitter}
			}
			if cmd.Flags().Changed("batch-size") {
				opts.Size, _ = cmd.Flags().GetInt("batch-size")
			}
			if cmd.Flags().Changed("delay") {
				opts.Delay, _ = cmd.Flags().GetDuration("delay")
			}
			if cmd.Flags().Changed("jitter") {
				opts.Jitter, _ = cmd.Flags().GetDuration("jitter")
			}
			if opts.Size < 1 {
				return fmt.Errorf("batch size must be at least 1")
			}

			quiet, _ := cmd.Flags().GetBool("quiet")
			var bar *progressbar.ProgressBar
			if !quiet && !jsonOutput(cmd) {
				bar = progressbar.NewOptions(len(args),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("Scraping products"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			results := e.catalog.ScrapeProducts(cmd.Context(), args, opts, func(r catalog.BatchResult) {
				if bar != nil {
					bar.Describe(r.Slug)
					_ = bar.Add(1)
				}
			})
			if bar != nil {
				_ = bar.Finish()
			}

			return renderBatch(cmd, args, results)
		},
	}

	cmd.Flags().Int("batch-size", 0, "Products per batch (default from config, 3)")
	cmd.Flags().Duration("delay", 0, "Pause after each product (default from config, 5s)")
	cmd.Flags().Duration("jitter", 0, "Random extra pause up to this much (default from config, 2s)")
	return cmd
}

func renderBatch(cmd *cobra.Command, slugs []string, results map[string]catalog.BatchResult) error {
	list := make([]catalog.BatchResult, 0, len(results))
	for _, r := range results {
		list = append(list, r)
	}
	order := make(map[string]int, len(slugs))
	for i, s := range slugs {
		if _, ok := order[s]; !ok {
			order[s] = i
		}
	}
	sort.Slice(list, func(i, j int) bool { return order[list[i].Slug] < order[list[j].Slug] })

	rows := make([][]string, 0, len(list))
	failed := 0
	for _, r := range list {
		status := "ok"
		switch {
		case !r.Success:
			status = "failed"
			failed++
		case !r.Saved:
			status = "skipped"
		}
		rows = append(rows, []string{r.Slug, status, r.Error, r.ScrapedAt.Format(time.RFC3339)})
	}
	if err := export(cmd, list, []string{"Slug", "Status", "Error", "Scraped at"}, rows); err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), list)
	}

	w := cmd.OutOrStdout()
	t := newTable(w, "Slug", "Status", "Error")
	for _, r := range rows {
		t.AppendRow(table.Row{r[0], r[1], r[2]})
	}
	t.Render()

	summary := fmt.Sprintf("%d of %d scraped", len(list)-failed, len(slugs))
	if failed > 0 || len(list) < len(slugs) {
		fmt.Fprintln(w, ui.Warn(summary))
	} else {
		fmt.Fprintln(w, ui.Success(summary))
	}
	return nil
}
