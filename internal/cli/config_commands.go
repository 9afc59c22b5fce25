// Package cli provides configuration commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusdrive/nimbus-cli/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config file:        %s\n", path)
			fmt.Fprintf(out, "api url:            %s\n", cfg.APIBaseURL)
			fmt.Fprintf(out, "callback url:       %s\n", cfg.CallbackURL)
			fmt.Fprintf(out, "poll interval:      %s\n", cfg.PollInterval)
			fmt.Fprintf(out, "health interval:    %s\n", cfg.HealthInterval)
			fmt.Fprintf(out, "upload concurrency: %d\n", cfg.UploadConcurrency)
			fmt.Fprintf(out, "proxy mode:         %s\n", cfg.ProxyMode)
			if cfg.ProxyMode != "" && cfg.ProxyMode != "no-proxy" {
				fmt.Fprintf(out, "proxy host:         %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
			}
			return nil
		},
	}
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			}

			if err := config.EnsureConfigDir(); err != nil {
				return err
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file and state database locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(config.DefaultConfigPath())
			fmt.Println(config.StateDBPath())
			return nil
		},
	}
}
