package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/studiobridge/internal/config"
)

var (
	configureHost     string
	configurePort     int
	configureTimeout  int
	configureInterval int
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the bridge configuration file",
	Long: `Write the bridge configuration file with the given settings.
Settings not passed as flags keep their defaults. The Studio plugin must be
pointed at the same host and port.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureHost, "host", "127.0.0.1", "address the plugin server binds to")
	configureCmd.Flags().IntVar(&configurePort, "port", 3002, "port the plugin server listens on")
	configureCmd.Flags().IntVar(&configureTimeout, "timeout-ms", 30000, "how long a tool call waits for the plugin")
	configureCmd.Flags().IntVar(&configureInterval, "poll-interval-ms", 200, "await re-check interval")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	cfg.Studio.Host = configureHost
	cfg.Studio.Port = configurePort
	cfg.Relay.TimeoutMs = configureTimeout
	cfg.Relay.PollIntervalMs = configureInterval
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := config.NewValidator().ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(out, "Start the bridge with: studiobridge serve")

	return nil
}
