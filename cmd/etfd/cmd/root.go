package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/openalpha/etf-service/service"
)

const shutdownTimeout = 10 * time.Second

// NewRootCmd creates the root command for etfd
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "etfd",
		Short: "ETF position service",
		Long: `etfd ingests the exchange's market data and clearing multicast feeds,
maintains per-client positions and per-symbol top-of-book, settles atomic
ETF create/redeem against the underlying basket, and publishes dashboard
frames over WebSocket alongside a REST control surface.`,
	}

	rootCmd.AddCommand(
		StartCmd(),
		VersionCmd(),
	)

	return rootCmd
}

// StartCmd runs the service until interrupted
func StartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ETF position service",
		RunE:  runStart,
	}

	cmd.Flags().String("config", "", "Path to config file")
	cmd.Flags().String("md-mcast-ip", "", "Market data multicast group IP")
	cmd.Flags().Int("md-mcast-port", 0, "Market data multicast group port")
	cmd.Flags().String("clearing-mcast-ip", "", "Clearing multicast group IP")
	cmd.Flags().Int("clearing-mcast-port", 0, "Clearing multicast group port")
	cmd.Flags().String("mcast-bind-ip", "", "Interface IP for multicast group joins")
	cmd.Flags().Int("rest-port", 0, "REST listen port")
	cmd.Flags().Int("ws-port", 0, "WebSocket listen port")
	cmd.Flags().String("engine", "", "Book engine: map, btree or skiplist")
	cmd.Flags().String("fee", "", "Per-unit volume fee in dashboard pnl")
	cmd.Flags().Int("snapshot-interval-ms", 0, "Dashboard frame cadence in milliseconds")
	cmd.Flags().String("log-level", "", "Log level")
	cmd.Flags().Bool("disable-rate-limit", false, "Serve REST without rate limiting")

	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	filter, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.NewLogger(os.Stderr, log.FilterOption(filter))

	svc, err := service.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return svc.Stop(shutdownCtx)
}

// applyFlags overrides file configuration with any flag set on the
// command line.
func applyFlags(cmd *cobra.Command, cfg *service.Config) {
	flags := cmd.Flags()

	if flags.Changed("md-mcast-ip") {
		cfg.MDMcastIP, _ = flags.GetString("md-mcast-ip")
	}
	if flags.Changed("md-mcast-port") {
		cfg.MDMcastPort, _ = flags.GetInt("md-mcast-port")
	}
	if flags.Changed("clearing-mcast-ip") {
		cfg.ClearingMcastIP, _ = flags.GetString("clearing-mcast-ip")
	}
	if flags.Changed("clearing-mcast-port") {
		cfg.ClearingMcastPort, _ = flags.GetInt("clearing-mcast-port")
	}
	if flags.Changed("mcast-bind-ip") {
		cfg.McastBindIP, _ = flags.GetString("mcast-bind-ip")
	}
	if flags.Changed("rest-port") {
		cfg.RESTPort, _ = flags.GetInt("rest-port")
	}
	if flags.Changed("ws-port") {
		cfg.WSPort, _ = flags.GetInt("ws-port")
	}
	if flags.Changed("engine") {
		cfg.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("fee") {
		cfg.Fee, _ = flags.GetString("fee")
	}
	if flags.Changed("snapshot-interval-ms") {
		cfg.SnapshotIntervalMs, _ = flags.GetInt("snapshot-interval-ms")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("disable-rate-limit") {
		cfg.DisableRateLimit, _ = flags.GetBool("disable-rate-limit")
	}
}

// VersionCmd returns a command to print the version
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("etfd v0.1.0")
		},
	}
}
