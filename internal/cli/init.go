package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const configTemplate = `# blockfeed configuration

[source]
# kind selects the chain source: "eth" uses the go-ethereum client and
# subscribes to new heads over websocket endpoints; "rpc" polls a raw
# JSON-RPC endpoint.
kind = "rpc"
endpoint = "http://localhost:8545"
# method is only used by the "rpc" kind.
method = "eth_blockNumber"
# poll_interval is the cadence for poll-driven sources. Use shorter
# intervals for fast-finalizing chains.
poll_interval = "5s"

[feed]
# start_height is the first height delivered to the consumer.
start_height = 0
# restart_delay is the pause before rebuilding the pipeline after the
# watch stream terminates.
restart_delay = "10s"

[metrics]
enabled = true
port = 9090
path = "/metrics"
collect_interval = "15s"

[api]
enabled = true
host = "0.0.0.0"
port = 8080
cors_origins = ["*"]
debug = false
# auth_enabled gates /api/v1 behind JWT bearer tokens signed with
# jwt_secret; /health and /ready stay open.
auth_enabled = false
jwt_secret = ""

[log]
level = "info"
color = true
disable = false
time_format = "kitchen"
`

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "config.toml", "Where to write the config file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
