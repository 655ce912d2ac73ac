package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/stopyard/internal/planner"
	"github.com/zulandar/stopyard/internal/timeline"
)

const barWidth = 52

type timelineFlags struct {
	search, center, phase string
	year, month, week     int
	asJSON                bool
}

func newTimelineCmd() *cobra.Command {
	var (
		configPath string
		f          timelineFlags
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the maintenance timeline",
		Long: `Prints one row per asset group with its strategy occurrences and stops
laid out over the selected year, month or ISO week.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(cmd, configPath, f)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&f.search, "search", "", "group or center name")
	cmd.Flags().StringVar(&f.center, "center", "", "location center code")
	cmd.Flags().StringVar(&f.phase, "phase", "", "operational phase")
	cmd.Flags().IntVar(&f.year, "year", 0, "calendar year (default current year)")
	cmd.Flags().IntVar(&f.month, "month", 0, "month 1-12")
	cmd.Flags().IntVar(&f.week, "week", 0, "ISO week")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the view as JSON")
	return cmd
}

func runTimeline(cmd *cobra.Command, configPath string, f timelineFlags) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	board := planner.NewBoard(planner.Options{
		MaxRows:  cfg.Timeline.MaxRows,
		Ruler:    timeline.RulerMode(cfg.Timeline.Ruler),
		Location: cfg.Timeline.Location(),
	})
	if err := board.Refresh(ctx, gormDB); err != nil {
		return err
	}

	// Order matters: each change narrows the options of the next.
	changes := []planner.Change{
		{Field: planner.FieldSearch, Value: f.search},
		{Field: planner.FieldCenter, Value: f.center},
		{Field: planner.FieldPhase, Value: f.phase},
		{Field: planner.FieldYear, Value: itoaOrEmpty(f.year)},
		{Field: planner.FieldMonth, Value: itoaOrEmpty(f.month)},
		{Field: planner.FieldWeek, Value: itoaOrEmpty(f.week)},
	}
	for _, c := range changes {
		if c.Value == "" {
			continue
		}
		if _, err := board.Apply(c); err != nil {
			return err
		}
	}

	view, err := board.View(ctx, gormDB, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printView(out, view)
	return nil
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func printView(out io.Writer, v *planner.View) {
	fmt.Fprintf(out, "Timeline %s to %s (%d days)\n", v.Window.Start.Format(dateLayout), v.Window.End.Format(dateLayout), v.TotalDays)
	if len(v.Rows) == 0 {
		fmt.Fprintln(out, "No groups match the current filters.")
		return
	}

	for _, row := range v.Rows {
		fmt.Fprintf(out, "\n%s  [%s %s]\n", row.Name, row.CenterCode, row.Phase)
		if len(row.Items) == 0 {
			fmt.Fprintln(out, "  (nothing scheduled)")
			continue
		}
		for _, it := range row.Items {
			status := it.Status
			if status == "" {
				status = "-"
			}
			fmt.Fprintf(out, "  |%s| %s  %s  %-10s %-8s %-11s %s\n",
				renderBar(it.Placement, barWidth),
				it.Start.Format(dateLayout), it.End.Format(dateLayout),
				it.Kind, it.Priority, status, truncate(it.Title, 40))
		}
	}
	if v.Truncated > 0 {
		fmt.Fprintf(out, "\n%d more groups not shown; narrow the filters to see them.\n", v.Truncated)
	}
}

// renderBar draws a placement as a fixed-width text bar. Every bar covers at
// least one cell.
func renderBar(p timeline.Placement, width int) string {
	left := int(math.Floor(p.LeftPercent / 100 * float64(width)))
	span := int(math.Ceil(p.WidthPercent / 100 * float64(width)))
	left = min(max(left, 0), width-1)
	span = min(max(span, 1), width-left)
	return strings.Repeat(" ", left) + strings.Repeat("#", span) + strings.Repeat(" ", width-left-span)
}
