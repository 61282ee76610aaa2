// Command gridctl inspects and steers a running gridsim over its HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/gridworks/internal/client"
)

var (
	serverURL string
	adminKey  string
	timeout   time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gridctl",
		Short:         "Inspect and control a gridworks simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("GW_SERVER", "http://localhost:8080"), "gridsim API base URL")
	rootCmd.PersistentFlags().StringVar(&adminKey, "admin-key", os.Getenv("GW_API_ADMIN_KEY"), "admin bearer token for commands")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")

	rootCmd.AddCommand(
		statusCmd(), pricesCmd(), entitiesCmd(), entityCmd(), buildingsCmd(), policiesCmd(),
		buildCmd(), sellBuildingCmd(), unlockCmd(), policyCmd(), tradeCmd("sell"), tradeCmd("buy"),
		batchCmd(), speedCmd(), snapshotCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	return client.New(serverURL, adminKey)
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func must(err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return nil
}
