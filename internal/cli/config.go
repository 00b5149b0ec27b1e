package cli

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/blockfeed/blockfeed/internal/config"
)

// NewConfigCommand creates the config command group
func NewConfigCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCommand(configPath))
	cmd.AddCommand(newConfigValidateCommand(configPath))

	return cmd
}

func newConfigShowCommand(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Show prints the configuration as resolved from defaults, the config
file, and environment overrides. Durations render as nanosecond counts
in toml output; use yaml for a friendlier dump.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			var out []byte
			switch format {
			case "toml":
				out, err = toml.Marshal(cfg)
			case "yaml":
				out, err = yaml.Marshal(cfg)
			default:
				return fmt.Errorf("unknown format %q (want toml or yaml)", format)
			}
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: toml or yaml")

	return cmd
}

func newConfigValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}
