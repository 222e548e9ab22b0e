package main

import (
	"fmt"

	"github.com/danmuck/nimctl/internal/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate config files",
	}
	cmd.AddCommand(configInitCmd(), configValidateCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var (
		kind   string
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		Long: `Write a starter config for nimd or nimbot.

Examples:
  nimd config init --output nimd.toml
  nimd config init --kind bot --output nimbot.toml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(output, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config template to %s\n", kind, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "server", "Config kind: server|bot")
	cmd.Flags().StringVarP(&output, "output", "o", "nimd.toml", "Output path")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func configValidateCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a server config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig(input)
			if err != nil {
				return err
			}
			if _, err := cfg.ServiceConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated server config at %s\n", input)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "nimd.toml", "Config path to validate")

	return cmd
}
