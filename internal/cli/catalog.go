package cli

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/catalog"
)

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the top-level categories",
		Long: `List the top-level categories. The first call on an empty store
scrapes them from the home page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := envFrom(cmd).catalog.GetAllCategories(cmd.Context())
			if err != nil {
				return err
			}
			views := catalog.CategoryViews(cats)

			rows := make([][]string, 0, len(views))
			for _, c := range views {
				rows = append(rows, []string{c.Slug, c.Title, strconv.Itoa(c.ProductCount), formatTime(c.LastScrapedAt)})
			}
			if err := export(cmd, views, []string{"Slug", "Title", "Products", "Last scraped"}, rows); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), views)
			}

			t := newTable(cmd.OutOrStdout(), "Slug", "Title", "Products", "Last scraped")
			for _, r := range rows {
				t.AppendRow(table.Row{r[0], r[1], r[2], r[3]})
			}
			t.Render()
			return nil
		},
	}
}

func newCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category <slug>",
		Short: "Show a category and a page of its products",
		Long: `Show a category and a page of its products, scraping the listing
when it is missing or stale.`,
		Example: `  catalog category fiction-books
  catalog category fiction-books --page 2 --limit 50
  catalog category fiction-books --refresh -o fiction.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := envFrom(cmd).catalog
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")
			refresh, _ := cmd.Flags().GetBool("refresh")

			var (
				res *catalog.CategoryWithProducts
				err error
			)
			if refresh {
				res, err = c.RefreshCategory(cmd.Context(), args[0])
			} else {
				res, err = c.GetCategory(cmd.Context(), args[0], page, limit)
			}
			if err != nil {
				return err
			}

			if !jsonOutput(cmd) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d products, last scraped %s)\n",
					res.Category.Title, res.Category.ProductCount, formatTime(res.Category.LastScrapedAt))
			}
			return renderProducts(cmd, res, res.Products.Items, res.Products.Pagination)
		},
	}

	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Int("limit", 20, "Items per page (max 100)")
	cmd.Flags().Bool("refresh", false, "Force a re-scrape first")
	return cmd
}

func newProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product <slug>",
		Short: "Show a product with its detail",
		Example: `  catalog product the-hobbit-9780261103344
  catalog product the-hobbit-9780261103344 --refresh --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := envFrom(cmd).catalog
			refresh, _ := cmd.Flags().GetBool("refresh")

			var (
				p   *catalog.ProductWithDetail
				err error
			)
			if refresh {
				p, err = c.RefreshProduct(cmd.Context(), args[0])
			} else {
				p, err = c.GetProduct(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			rows := productDetailRows(p)
			if err := export(cmd, p, []string{"Field", "Value"}, rows); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), p)
			}

			t := newTable(cmd.OutOrStdout(), "Field", "Value")
			for _, r := range rows {
				t.AppendRow(table.Row{r[0], r[1]})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().Bool("refresh", false, "Force a re-scrape first")
	return cmd
}

func productDetailRows(p *catalog.ProductWithDetail) [][]string {
	rows := [][]string{
		{"Title", p.Title},
		{"Author", orDash(p.Author)},
		{"Price", formatPrice(p.Price, p.Currency)},
		{"Source ID", p.SourceID},
		{"URL", p.URL},
		{"Last scraped", formatTime(p.LastScrapedAt)},
	}
	d := p.Detail
	if d == nil {
		return append(rows, []string{"Detail", "-"})
	}

	rating := "-"
	if d.RatingsAvg != nil {
		rating = strconv.FormatFloat(*d.RatingsAvg, 'f', 1, 64)
	}
	rrp := "-"
	if d.RRP != nil {
		rrp = formatPrice(*d.RRP, p.Currency)
	}
	stock := "no"
	if d.InStock {
		stock = "yes"
	}
	rows = append(rows,
		[]string{"Series", orDash(d.Series)},
		[]string{"RRP", rrp},
		[]string{"In stock", stock},
		[]string{"Rating", rating},
		[]string{"Reviews", strconv.Itoa(d.ReviewsCount)},
	)
	for _, c := range d.Conditions {
		rows = append(rows, []string{"Condition " + c.Label, formatPrice(c.Price, p.Currency)})
	}
	return rows
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored products by title or source id",
		Example: `  catalog search tolkien
  catalog search 9780261103344 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")

			res, err := envFrom(cmd).catalog.SearchProducts(cmd.Context(), args[0], page, limit)
			if err != nil {
				return err
			}
			return renderProducts(cmd, res, res.Items, res.Pagination)
		},
	}

	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Int("limit", 20, "Items per page (max 100)")
	return cmd
}
