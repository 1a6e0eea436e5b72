package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/studiobridge/internal/config"
	"github.com/harun/studiobridge/internal/logger"
	"github.com/harun/studiobridge/internal/observability"
	"github.com/harun/studiobridge/internal/tracing"
	"github.com/harun/studiobridge/pkg/mcpserver"
	"github.com/harun/studiobridge/pkg/relay"
	"github.com/harun/studiobridge/pkg/studio"
	"github.com/harun/studiobridge/pkg/studiotools"
	"github.com/harun/studiobridge/pkg/toolcall"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP bridge",
	Long: `Serve the MCP session over stdio and the plugin endpoints over HTTP.
This command is meant to be launched by an MCP host; it runs in the
foreground until the agent disconnects or the process is signalled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := config.NewValidator().ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
		appLogger.Warn().Err(err).Msg("Audit logging disabled")
	}

	if err := tracing.InitOpenTelemetry(cfg.MCP.ServerName); err != nil {
		appLogger.Warn().Err(err).Msg("Tracing disabled")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			appLogger.Warn().Err(err).Msg("Failed to shut down tracing")
		}
	}()

	queue := relay.New(relay.Options{
		Timeout:      time.Duration(cfg.Relay.TimeoutMs) * time.Millisecond,
		PollInterval: time.Duration(cfg.Relay.PollIntervalMs) * time.Millisecond,
	})

	registry := toolcall.NewRegistry(queue)
	if err := studiotools.RegisterStudioTools(registry); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	studioServer, err := studio.NewServer(studio.ServerOptions{
		Host: cfg.Studio.Host,
		Port: cfg.Studio.Port,
	}, queue, appLogger.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to create Studio plugin server: %w", err)
	}

	mcpServer, err := mcpserver.New(cfg.MCP.ServerName, registry, appLogger.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpErrs := make(chan error, 1)
	go func() {
		httpErrs <- studioServer.Start()
	}()

	appLogger.Info().
		Str("addr", studioServer.Addr()).
		Int("timeoutMs", cfg.Relay.TimeoutMs).
		Msg("StudioBridge running")

	mcpErr := make(chan error, 1)
	go func() {
		mcpErr <- mcpServer.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-mcpErr:
	case runErr = <-httpErrs:
		stop()
		<-mcpErr
	case <-ctx.Done():
		<-mcpErr
	}

	if err := studioServer.Stop(); err != nil {
		appLogger.Warn().Err(err).Msg("Studio plugin server did not stop cleanly")
	}
	if audit := observability.GetAuditLogger(); audit != nil {
		audit.Close()
	}

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	appLogger.Info().Msg("StudioBridge stopped")
	return nil
}
