package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fleetwatch/cmd/cli/client"
	"fleetwatch/internal/models"
)

func newAlertCommand() *cobra.Command {
	alertCmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and manage alert instances",
	}

	var filters client.AlertFilters
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alert instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			instances, err := apiClient.ListAlerts(filters)
			if err != nil {
				return err
			}
			printAlerts(instances)
			return nil
		},
	}
	listCmd.Flags().StringVar(&filters.Status, "status", "", "filter by status (active/acknowledged/resolved/suppressed)")
	listCmd.Flags().StringVar(&filters.Severity, "severity", "", "filter by severity (critical/high/medium/low)")
	listCmd.Flags().StringVar(&filters.Location, "location", "", "filter by location id")
	listCmd.Flags().StringVar(&filters.Device, "device", "", "filter by device id")
	listCmd.Flags().StringVar(&filters.Search, "search", "", "free-text search")

	var ackBy string
	ackCmd := &cobra.Command{
		Use:   "ack [id]",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.AcknowledgeAlert(args[0], ackBy); err != nil {
				return err
			}
			fmt.Println("Alert acknowledged")
			return nil
		},
	}
	ackCmd.Flags().StringVar(&ackBy, "by", "", "operator acknowledging the alert")
	ackCmd.MarkFlagRequired("by")

	resolveCmd := &cobra.Command{
		Use:   "resolve [id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.ResolveAlert(args[0]); err != nil {
				return err
			}
			fmt.Println("Alert resolved")
			return nil
		},
	}

	suppressCmd := &cobra.Command{
		Use:   "suppress [id]",
		Short: "Suppress an alert (e.g. during maintenance)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.SuppressAlert(args[0]); err != nil {
				return err
			}
			fmt.Println("Alert suppressed")
			return nil
		},
	}

	var exportOut string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export alert instances as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := apiClient.ExportAlerts(filters)
			if err != nil {
				return err
			}
			if exportOut == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(exportOut, data, 0644); err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", exportOut)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write CSV to file instead of stdout")

	alertCmd.AddCommand(listCmd, ackCmd, resolveCmd, suppressCmd, exportCmd)
	return alertCmd
}

func newRuleCommand() *cobra.Command {
	ruleCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage alert rules",
	}

	var enabledOnly bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alert rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabledPtr *bool
			if enabledOnly {
				enabledPtr = &enabledOnly
			}
			rules, err := apiClient.ListRules(enabledPtr)
			if err != nil {
				return err
			}
			printRules(rules)
			return nil
		},
	}
	listCmd.Flags().BoolVar(&enabledOnly, "enabled", false, "only enabled rules")

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Get alert rule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := apiClient.GetRule(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rule, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a rule from JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rule models.AlertRule
			if err := json.NewDecoder(os.Stdin).Decode(&rule); err != nil {
				return fmt.Errorf("invalid rule JSON: %w", err)
			}
			if err := apiClient.CreateRule(&rule); err != nil {
				return err
			}
			fmt.Println("Rule created")
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a rule from JSON on stdin without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rule models.AlertRule
			if err := json.NewDecoder(os.Stdin).Decode(&rule); err != nil {
				return fmt.Errorf("invalid rule JSON: %w", err)
			}
			if err := apiClient.ValidateRule(&rule); err != nil {
				return err
			}
			fmt.Println("Rule is valid")
			return nil
		},
	}

	ruleCmd.AddCommand(listCmd, getCmd, createCmd, validateCmd)
	return ruleCmd
}

func printAlerts(instances []models.AlertInstance) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
	fmt.Fprintln(w, "ID\tSEVERITY\tDEVICE\tLOCATION\tCONDITION\tSTART\tSTATUS\tASSIGNED\t")
	for _, a := range instances {
		id := a.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			id, a.Severity.Display().Label, a.DeviceName, a.LocationName,
			a.TriggerCondition, a.StartTime.Format(time.RFC3339), a.Status, a.AssignedTo)
	}
	w.Flush()
}

func printRules(rules []models.AlertRule) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSEVERITY\tGROUPS\tENABLED\t")
	for _, r := range rules {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t\n",
			id, r.Name, r.RuleType, r.Severity, len(r.ConditionGroups), r.Enabled)
	}
	w.Flush()
}
