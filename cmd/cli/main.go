package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fleetwatch/cmd/cli/client"
)

var (
	serverURL string
	apiClient *client.APIClient
)

var rootCmd = &cobra.Command{
	Use:   "fleetwatch",
	Short: "FleetWatch CLI - device alerting management",
	Long: `FleetWatch CLI manages alert instances and rules on a running
FleetWatch engine: list and filter alerts, acknowledge or resolve them,
export to CSV, and manage alert rules.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "engine API base URL")
	rootCmd.AddCommand(newAlertCommand())
	rootCmd.AddCommand(newRuleCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
