package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const serviceName = "at-insurance"

var rootCmd = &cobra.Command{
	Use:   "at-insurance",
	Short: "Farmer insurance backend",
	Long: `Farmer insurance backend: OTP phone login, farmer registration,
policies, claims with photo evidence, and M-Pesa payment proxying.

Running without a subcommand starts the servers.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, quoteCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
