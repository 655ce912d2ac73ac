package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/stopyard/internal/dashboard"
	"github.com/zulandar/stopyard/internal/sap"
)

func newSAPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sap",
		Short: "SAP BTP integration commands",
	}

	cmd.AddCommand(newSAPStatusCmd())
	cmd.AddCommand(newSAPExportCmd())
	return cmd
}

func newSAPStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check connectivity to the configured SAP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.SAP.Enabled() {
				fmt.Fprintln(out, "SAP integration is not configured.")
				return nil
			}
			ctx := context.Background()
			client := sap.NewClient(ctx, cfg.SAP, sap.ClientOpts{Logger: newLogger(cfg.Log, cmd.ErrOrStderr())})
			st := client.Status(ctx)
			fmt.Fprintf(out, "Endpoint:  %s\n", st.Endpoint)
			if st.Reachable {
				fmt.Fprintf(out, "Reachable: yes (%s)\n", st.Latency)
				return nil
			}
			fmt.Fprintln(out, "Reachable: no")
			fmt.Fprintf(out, "Error:     %s (%s)\n", st.Error, st.Kind)
			return fmt.Errorf("SAP endpoint unreachable")
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	return cmd
}

func newSAPExportCmd() *cobra.Command {
	var (
		configPath string
		ids        []string
	)

	cmd := &cobra.Command{
		Use:   "export <groups|strategies|stops>",
		Short: "Export records to SAP BTP in one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			return runSAPExport(cmd, configPath, entity, ids)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "only export these record ids")
	return cmd
}

func parseEntity(s string) (sap.EntityType, error) {
	switch strings.ToLower(s) {
	case "group", "groups":
		return sap.EntityAssetGroup, nil
	case "strategy", "strategies":
		return sap.EntityStrategy, nil
	case "stop", "stops":
		return sap.EntityStop, nil
	}
	return "", fmt.Errorf("unknown entity %q (want groups, strategies or stops)", s)
}

func runSAPExport(cmd *cobra.Command, configPath string, entity sap.EntityType, ids []string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.SAP.Enabled() {
		return sap.ErrNotConfigured
	}
	ctx := context.Background()
	records, err := dashboard.ExportRecords(ctx, gormDB, entity, ids)
	if err != nil {
		return err
	}
	client := sap.NewClient(ctx, cfg.SAP, sap.ClientOpts{Logger: newLogger(cfg.Log, cmd.ErrOrStderr())})
	res, err := client.Export(ctx, records)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Message)
	if res.Failed > 0 {
		fmt.Fprintf(out, "%d failed\n", res.Failed)
	}
	keys := make([]string, 0, len(res.Rejected))
	for k := range res.Rejected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "rejected %s: %s\n", k, strings.Join(res.Rejected[k], "; "))
	}
	return nil
}
