package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/usagewatch/pkg/client"
)

var (
	Version = "dev"

	endpoint string
	timeout  time.Duration
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "usagewatch",
		Short:         "Inspect and control the usagewatch daemon",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultEndpoint := os.Getenv("USAGEWATCH_ENDPOINT")
	if defaultEndpoint == "" {
		defaultEndpoint = client.DefaultEndpoint
	}
	root.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", defaultEndpoint, "usagewatch-d API endpoint")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newStatusCmd(),
		newRefreshCmd(),
		newSettingsCmd(),
		newTestNotificationCmd(),
		newMCPCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.NewClient(endpoint)
}
