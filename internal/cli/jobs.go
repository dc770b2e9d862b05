package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/law-makers/catalog/internal/catalog"
	"github.com/law-makers/catalog/internal/ui"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent scrape jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			_, limit = catalog.NormalizePage(1, limit)

			jobs, err := envFrom(cmd).catalog.ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				dur := "-"
				if j.FinishedAt != nil {
					dur = j.FinishedAt.Sub(j.StartedAt).Round(time.Millisecond).String()
				}
				errLog := ""
				if j.ErrorLog != nil {
					errLog = *j.ErrorLog
				}
				rows = append(rows, []string{
					j.StartedAt.Local().Format("2006-01-02 15:04:05"),
					string(j.TargetType),
					string(j.Status),
					strconv.Itoa(j.ItemCount),
					dur,
					j.TargetURL,
					errLog,
				})
			}
			header := []string{"Started", "Type", "Status", "Items", "Took", "URL", "Error"}
			if err := export(cmd, jobs, header, rows); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), jobs)
			}

			t := newTable(cmd.OutOrStdout(), "Started", "Type", "Status", "Items", "Took", "URL")
			for _, r := range rows {
				t.AppendRow(table.Row{r[0], r[1], r[2], r[3], r[4], r[5]})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Number of jobs to show (max 100)")
	return cmd
}

var errUnhealthy = errors.New("upstream unhealthy")

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the upstream site can be scraped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := envFrom(cmd).catalog.Health(cmd.Context())
			if jsonOutput(cmd) {
				if err := printJSON(cmd.OutOrStdout(), h); err != nil {
					return err
				}
			} else if h.Healthy {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Success("healthy: ")+h.Message)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Error("unhealthy: ")+h.Message)
			}
			if !h.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
