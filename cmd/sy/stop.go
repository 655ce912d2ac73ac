package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/schedule"
	"github.com/zulandar/stopyard/internal/stop"
)

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Maintenance stop commands",
	}

	cmd.AddCommand(newStopAddCmd())
	cmd.AddCommand(newStopListCmd())
	cmd.AddCommand(newStopStatusCmd())
	cmd.AddCommand(newStopGenerateCmd())
	cmd.AddCommand(newStopRepairCmd())
	cmd.AddCommand(newStopSummaryCmd())
	return cmd
}

type stopAddFlags struct {
	groupID, title, description, start, end string
	priority, team, costCenter, by          string
	assets                                  []string
	cost                                    float64
}

func newStopAddCmd() *cobra.Command {
	var (
		configPath string
		f          stopAddFlags
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a one-off maintenance stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStopAdd(cmd, configPath, f)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&f.groupID, "group", "", "asset group id (required)")
	cmd.Flags().StringVar(&f.title, "title", "", "stop title (required)")
	cmd.Flags().StringVar(&f.start, "start", "", "planned start, YYYY-MM-DD or RFC 3339 (required)")
	cmd.Flags().StringVar(&f.end, "end", "", "planned end, YYYY-MM-DD or RFC 3339 (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.priority, "priority", "", "critical, high, medium or low")
	cmd.Flags().StringVar(&f.team, "team", "", "responsible team (required)")
	cmd.Flags().StringSliceVar(&f.assets, "assets", nil, "affected asset tags")
	cmd.Flags().Float64Var(&f.cost, "cost", 0, "estimated cost")
	cmd.Flags().StringVar(&f.costCenter, "cost-center", "", "cost center")
	cmd.Flags().StringVar(&f.by, "by", "", "author")
	for _, name := range []string{"group", "title", "start", "end", "team"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runStopAdd(cmd *cobra.Command, configPath string, f stopAddFlags) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	loc := cfg.Timeline.Location()

	start, err := parseDate(f.start, loc)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := parseDate(f.end, loc)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}
	opts := stop.CreateOpts{
		GroupID:         f.groupID,
		Title:           f.title,
		Description:     f.description,
		PlannedStart:    start,
		PlannedEnd:      end,
		Priority:        f.priority,
		AffectedAssets:  f.assets,
		ResponsibleTeam: f.team,
		CostCenter:      f.costCenter,
		CreatedBy:       f.by,
	}
	if cmd.Flags().Changed("cost") {
		opts.EstimatedCost = &f.cost
	}

	st, err := stop.Create(context.Background(), gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created stop %s (%s, %s to %s)\n",
		st.ID, st.Title, st.PlannedStart.In(loc).Format(time.DateTime), st.PlannedEnd.In(loc).Format(time.DateTime))
	return nil
}

func newStopListCmd() *cobra.Command {
	var (
		configPath string
		filters    stop.ListFilters
		year       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List maintenance stops",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			loc := cfg.Timeline.Location()
			if year != 0 {
				w := schedule.YearWindow(year, loc)
				filters.Window = &w
			}
			stops, err := stop.List(context.Background(), gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(stops) == 0 {
				fmt.Fprintln(out, "No stops found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTART\tEND\tSTATUS\tPRI\tTEAM\tDONE")
			for _, s := range stops {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d%%\n",
					s.ID, truncate(s.Title, 40),
					s.PlannedStart.In(loc).Format(dateLayout), s.PlannedEnd.In(loc).Format(dateLayout),
					s.Status, s.Priority, orDash(s.ResponsibleTeam), s.Completion())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&filters.GroupID, "group", "", "filter by group id")
	cmd.Flags().StringVar(&filters.StrategyID, "strategy", "", "filter by strategy id")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&filters.CenterCode, "center", "", "filter by center code")
	cmd.Flags().StringVar(&filters.Phase, "phase", "", "filter by phase")
	cmd.Flags().StringVar(&filters.Search, "search", "", "filter by title")
	cmd.Flags().IntVar(&year, "year", 0, "only stops starting in this year")
	return cmd
}

func newStopStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <id> <planned|in-progress|completed|cancelled>",
		Short: "Move a stop through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := stop.Get(ctx, gormDB, args[0])
			if err != nil {
				return err
			}
			st, err = stop.SetStatus(ctx, gormDB, st.ID, st.Version, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop %s is now %s (%d%% complete)\n", st.ID, st.Status, st.Completion())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	return cmd
}

func newStopGenerateCmd() *cobra.Command {
	var (
		configPath string
		year       int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create planned stops from every active strategy",
		Long:  "Expands every active strategy over the year and creates one planned stop per occurrence. Occurrences that already have a stop are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			loc := cfg.Timeline.Location()
			if year == 0 {
				year = time.Now().In(loc).Year()
			}
			res, err := stop.Generate(context.Background(), gormDB, year, loc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d stops for %d (%d already existed)\n", res.Created, year, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default current year)")
	return cmd
}

func newStopRepairCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reattach stops whose group no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, cmd.ErrOrStderr())
			moved, err := stop.Repair(context.Background(), gormDB, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(moved) == 0 {
				fmt.Fprintln(out, "No orphaned stops.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STOP\tFROM\tTO\tMATCH")
			for _, r := range moved {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.StopID, r.FromGroupID, r.ToGroupID, r.Match)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	return cmd
}

func newStopSummaryCmd() *cobra.Command {
	var (
		configPath string
		filters    stop.ListFilters
		year       int
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count stops by status and priority and total their cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if year != 0 {
				w := schedule.YearWindow(year, cfg.Timeline.Location())
				filters.Window = &w
			}
			sum, err := stop.SummaryOf(context.Background(), gormDB, filters)
			if err != nil {
				return err
			}
			printSummary(cmd, sum)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&filters.GroupID, "group", "", "filter by group id")
	cmd.Flags().StringVar(&filters.CenterCode, "center", "", "filter by center code")
	cmd.Flags().StringVar(&filters.Phase, "phase", "", "filter by phase")
	cmd.Flags().IntVar(&year, "year", 0, "only stops starting in this year")
	return cmd
}

func printSummary(cmd *cobra.Command, sum stop.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stops:           %d\n", sum.Total)
	fmt.Fprintf(out, "Hours:           %.1f\n", sum.TotalHours)
	fmt.Fprintf(out, "Estimated cost:  %.2f\n", sum.EstimatedCost)
	fmt.Fprintf(out, "Actual cost:     %.2f\n", sum.ActualCost)
	fmt.Fprintf(out, "Mean completion: %.0f%%\n", sum.MeanCompletion)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT\tCOST")
	for _, s := range models.StopStatuses {
		fmt.Fprintf(w, "%s\t%d\t%.2f\n", s, sum.ByStatus[s], sum.CostByStatus[s])
	}
	w.Flush()
	fmt.Fprintln(out)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tCOUNT")
	for _, p := range models.Priorities {
		fmt.Fprintf(w, "%s\t%d\n", p, sum.ByPriority[p])
	}
	w.Flush()
}
