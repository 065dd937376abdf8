// Package main implements nutrictl, a command-line client for the nutrid
// HTTP API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	server  string
	prefix  string
	timeout time.Duration
	json    bool
}

func (o *rootOptions) client() *client {
	return newClient(o.server, o.prefix, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nutrictl",
		Short: "CLI for the nutrid nutrition service",
		Long: `nutrictl is a command-line interface for the nutrid HTTP server.
It predicts daily nutrient needs, logs foods and shows daily evaluations.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("NUTRID_URL", "http://localhost:8080"), "nutrid server URL")
	cmd.PersistentFlags().StringVar(&opts.prefix, "api-prefix", "/api", "API route prefix")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON data")

	cmd.AddCommand(
		newPredictCmd(opts),
		newInitCmd(opts),
		newAddFoodCmd(opts),
		newDailyCmd(opts),
		newFoodsCmd(opts),
		newHealthCmd(opts),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if !cmd.Flags().Changed(name) {
			return fmt.Errorf("required flag --%s not set", name)
		}
	}
	return nil
}
