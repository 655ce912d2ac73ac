package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/schedule"
	"github.com/zulandar/stopyard/internal/strategy"
)

func newStrategyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Maintenance strategy commands",
	}

	cmd.AddCommand(newStrategyAddCmd())
	cmd.AddCommand(newStrategyListCmd())
	cmd.AddCommand(newStrategyExpandCmd())
	cmd.AddCommand(newStrategyToggleCmd())
	return cmd
}

type strategyAddFlags struct {
	name, groupID, every, duration string
	start, end, priority           string
	description, taskList, pkg, by string
	teams                          []string
	hours                          float64
	inactive                       bool
}

func newStrategyAddCmd() *cobra.Command {
	var (
		configPath string
		f          strategyAddFlags
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a recurring maintenance strategy",
		Long: `Creates a strategy for a group. --every and --duration take "<n> <unit>",
for example --every "2 weeks" --duration "3 days".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrategyAdd(cmd, configPath, f)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&f.name, "name", "", "strategy name (required)")
	cmd.Flags().StringVar(&f.groupID, "group", "", "asset group id (required)")
	cmd.Flags().StringVar(&f.every, "every", "", "recurrence, e.g. \"1 months\" (required)")
	cmd.Flags().StringVar(&f.duration, "duration", "", "length of each stop, e.g. \"8 hours\" (required)")
	cmd.Flags().StringVar(&f.start, "start", "", "first occurrence, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.end, "end", "", "last possible occurrence, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.priority, "priority", "", "critical, high, medium or low")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringSliceVar(&f.teams, "teams", nil, "responsible teams")
	cmd.Flags().Float64Var(&f.hours, "hours", 0, "total labour hours")
	cmd.Flags().StringVar(&f.pkg, "package", "", "SAP maintenance package")
	cmd.Flags().StringVar(&f.taskList, "task-list", "", "SAP task list id")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "create the strategy switched off")
	cmd.Flags().StringVar(&f.by, "by", "", "author")
	for _, name := range []string{"name", "group", "every", "duration", "start"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runStrategyAdd(cmd *cobra.Command, configPath string, f strategyAddFlags) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	loc := cfg.Timeline.Location()

	fv, fu, err := parseAmount(f.every)
	if err != nil {
		return fmt.Errorf("--every: %w", err)
	}
	dv, du, err := parseAmount(f.duration)
	if err != nil {
		return fmt.Errorf("--duration: %w", err)
	}
	start, err := parseDate(f.start, loc)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := parseOptionalDate(f.end, loc)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	st, err := strategy.Create(context.Background(), gormDB, strategy.CreateOpts{
		Name:               f.name,
		GroupID:            f.groupID,
		Frequency:          schedule.Frequency{Value: fv, Unit: schedule.FrequencyUnit(fu)},
		Duration:           schedule.Span{Value: dv, Unit: schedule.DurationUnit(du)},
		StartDate:          start,
		EndDate:            end,
		Inactive:           f.inactive,
		Description:        f.description,
		Priority:           f.priority,
		Teams:              f.teams,
		TotalHours:         f.hours,
		MaintenancePackage: f.pkg,
		TaskListID:         f.taskList,
		CreatedBy:          f.by,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created strategy %s (%s, every %d %s for %d %s)\n",
		st.ID, st.Name, st.FrequencyValue, st.FrequencyUnit, st.DurationValue, st.DurationUnit)
	return nil
}

func newStrategyListCmd() *cobra.Command {
	var (
		configPath string
		filters    strategy.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			strategies, err := strategy.List(context.Background(), gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(strategies) == 0 {
				fmt.Fprintln(out, "No strategies found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGROUP\tEVERY\tDURATION\tSTART\tPRI\tACTIVE")
			for _, s := range strategies {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d %s\t%d %s\t%s\t%s\t%s\n",
					s.ID, truncate(s.Name, 32), s.GroupID,
					s.FrequencyValue, s.FrequencyUnit, s.DurationValue, s.DurationUnit,
					s.StartDate.Format(dateLayout), s.Priority, activeLabel(s.IsActive))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&filters.GroupID, "group", "", "filter by group id")
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "filter by priority")
	cmd.Flags().BoolVar(&filters.ActiveOnly, "active", false, "only active strategies")
	return cmd
}

func activeLabel(active bool) string {
	if active {
		return "yes"
	}
	return "no"
}

func newStrategyExpandCmd() *cobra.Command {
	var (
		configPath string
		year       int
	)

	cmd := &cobra.Command{
		Use:   "expand <id>",
		Short: "Print the occurrences of a strategy in a year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrategyExpand(cmd, configPath, args[0], year)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default current year)")
	return cmd
}

func runStrategyExpand(cmd *cobra.Command, configPath, id string, year int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	loc := cfg.Timeline.Location()
	if year == 0 {
		year = time.Now().In(loc).Year()
	}

	st, err := strategy.Get(context.Background(), gormDB, id)
	if err != nil {
		return err
	}
	st.StartDate = st.StartDate.In(loc)
	occ := strategy.Occurrences([]models.Strategy{*st}, year)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d occurrences in %d\n", st.Name, len(occ), year)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTART\tEND")
	for i, o := range occ {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, o.Start.Format(time.DateTime), o.End.Format(time.DateTime))
	}
	return w.Flush()
}

func newStrategyToggleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "toggle <id> <on|off>",
		Short: "Switch a strategy on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch strings.ToLower(args[1]) {
			case "on", "true", "active":
				active = true
			case "off", "false", "inactive":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := strategy.Get(ctx, gormDB, args[0])
			if err != nil {
				return err
			}
			st, err = strategy.SetActive(ctx, gormDB, st.ID, st.Version, active)
			if err != nil {
				return err
			}
			state := "inactive"
			if st.IsActive {
				state = "active"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Strategy %s is now %s\n", st.ID, state)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	return cmd
}
