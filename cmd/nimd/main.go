package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nimd",
		Short: "NGP Nim game server",
		Long: `nimd accepts NGP players over TCP (optionally TLS or websocket),
pairs them in arrival order and referees their Nim games.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		serveCmd(),
		configCmd(),
	)
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nimd: %v\n", err)
		os.Exit(1)
	}
}
