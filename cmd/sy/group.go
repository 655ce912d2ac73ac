package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/stopyard/internal/group"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Asset group management commands",
	}

	cmd.AddCommand(newGroupAddCmd())
	cmd.AddCommand(newGroupListCmd())
	cmd.AddCommand(newGroupAssetCmd())
	cmd.AddCommand(newCenterListCmd())
	return cmd
}

func newGroupAddCmd() *cobra.Command {
	var (
		configPath string
		opts       group.CreateOpts
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an asset group",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			g, err := group.Create(context.Background(), gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created group %s (%s, %s %s)\n", g.ID, g.Name, g.CenterCode, g.Phase)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&opts.Name, "name", "", "group name (required)")
	cmd.Flags().StringVar(&opts.CenterCode, "center", "", "location center code (required)")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "operational phase (required)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "group type")
	cmd.Flags().StringVar(&opts.System, "system", "", "system")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.PlantCode, "plant", "", "plant code")
	cmd.Flags().StringVar(&opts.PlannerGroup, "planner-group", "", "SAP planner group")
	cmd.Flags().StringVar(&opts.CreatedBy, "by", "", "author")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("center")
	cmd.MarkFlagRequired("phase")
	return cmd
}

func newGroupListCmd() *cobra.Command {
	var (
		configPath string
		filters    group.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List asset groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			groups, err := group.List(context.Background(), gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "No groups found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCENTER\tPHASE\tTYPE")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, truncate(g.Name, 40), g.CenterCode, g.Phase, g.Type)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&filters.CenterCode, "center", "", "filter by center code")
	cmd.Flags().StringVar(&filters.Phase, "phase", "", "filter by phase")
	cmd.Flags().StringVar(&filters.Search, "search", "", "filter by group or center name")
	return cmd
}

func newGroupAssetCmd() *cobra.Command {
	var (
		configPath string
		opts       group.AssetOpts
	)

	cmd := &cobra.Command{
		Use:   "asset <group-id>",
		Short: "Add an asset to a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			a, err := group.AddAsset(context.Background(), gormDB, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added asset %s (%s) to group %s\n", a.Tag, a.Name, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "asset tag (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "asset name (required)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "asset type")
	cmd.Flags().StringVar(&opts.System, "system", "", "system")
	cmd.Flags().StringVar(&opts.WorkCenter, "work-center", "", "SAP work center")
	cmd.Flags().StringVar(&opts.FunctionalLocation, "floc", "", "SAP functional location")
	cmd.MarkFlagRequired("tag")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newCenterListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "centers",
		Short: "List location centers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			centers, err := group.ListCenters(context.Background(), gormDB)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tREGION")
			for _, c := range centers {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Code, c.Name, c.Region)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	return cmd
}
