package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/gsd/pkg/model"
)

func captureCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "capture [text]",
		Short: "Capture a task from text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				cc := model.CaptureContext{
					Title:     title,
					URL:       "manual",
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
				}
				extracted := a.extractor.FromText(ctx, strings.Join(args, " "), cc)
				saved, err := a.tasks.SaveTask(ctx, extracted)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(saved)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "Quick Capture", "capture context title, used as the fallback project")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		status string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured tasks in board order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter model.Status
			if status != "" {
				st, ok := model.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter = st
			}
			return withApp(func(ctx context.Context, a *app) error {
				all, err := a.tasks.List(ctx)
				if err != nil {
					return err
				}
				shown := make([]model.Task, 0, len(all))
				for _, t := range all {
					if filter == "" || t.Status == filter {
						shown = append(shown, t)
					}
				}
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(shown)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "STATUS\tPRIORITY\tPROJECT\tDUE\tSYNCED\tTASK")
				for _, t := range shown {
					due := "-"
					if t.Deadline != nil {
						due = t.Deadline.In(a.loc).Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", t.Status, t.Priority, t.Project, due, t.SyncedToGoogle, t.Task)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show tasks with this status (todo, in_progress, done)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func summaryCmd() *cobra.Command {
	var (
		date     string
		projects bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the daily work summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				ref := time.Now().In(a.loc)
				if date != "" {
					d, err := time.ParseInLocation("2006-01-02", date, a.loc)
					if err != nil {
						return fmt.Errorf("invalid --date %q: %w", date, err)
					}
					ref = d
				}
				if projects {
					breakdown, err := a.tasks.ProjectBreakdown(ctx, ref)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "PROJECT\tMINUTES\tHOURS\tTASKS")
					for _, p := range breakdown {
						fmt.Fprintf(w, "%s\t%d\t%g\t%d\n", p.Project, p.Minutes, p.Hours, len(p.Tasks))
					}
					return w.Flush()
				}
				summary, err := a.tasks.DailySummary(ctx, ref)
				if err != nil {
					return err
				}
				fmt.Println(summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to summarize (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&projects, "projects", false, "print the per-project time breakdown instead")
	return cmd
}
