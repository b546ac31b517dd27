package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/sockserve/internal/config"
	"github.com/muurk/sockserve/internal/discovery"
	"github.com/muurk/sockserve/internal/logging"
	"github.com/muurk/sockserve/internal/server"
	"github.com/muurk/sockserve/internal/ui"
)

// Serve command flags
var (
	serveOnly      []string
	serveDashboard bool
	serveAdvertise bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the configured servers",
	Long: `Start every server in the configuration file and run until interrupted.

Each server must begin accepting connections within a few seconds or the
command fails after stopping the others. On SIGINT or SIGTERM, or once every
server has stopped on its own, the servers stop accepting and in-flight
connections get shutdown_timeout to finish.

If no configuration file exists the built-in defaults are used.`,
	Example: `  # Start every configured server
  sockserve serve

  # Start only the echo servers with debug logging
  sockserve serve --only echo,echo-tls --log-level debug

  # Watch live connection counts
  sockserve serve --dashboard

  # Announce the servers over mDNS
  sockserve serve --advertise`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveOnly, "only", nil, "Run only the named servers (comma separated)")
	serveCmd.Flags().BoolVar(&serveDashboard, "dashboard", false, "Show a live dashboard instead of log output")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Advertise servers over mDNS")
}

func runServe(cmd *cobra.Command, args []string) error {
	path, err := config.ResolvePath(configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if serveDashboard && !ui.IsTerminal() {
		return fmt.Errorf("--dashboard requires an interactive terminal")
	}

	if err := logging.Initialize(resolveLogLevel(logLevel, cfg.LogLevel, serveDashboard)); err != nil {
		return err
	}
	defer logging.Sync()

	printer := ui.NewPrinter(cmd.OutOrStdout())

	sup, err := server.New(cfg, server.Options{
		Only:      serveOnly,
		Advertise: serveAdvertise,
	})
	if err != nil {
		printer.PrintError("Invalid server selection", err, []string{
			"Check the server names passed to --only",
			"Run 'sockserve config show' to list configured servers",
		})
		return err
	}

	if err := sup.Start(); err != nil {
		printer.PrintError("Server failed to start", err, []string{
			"Check that no other process is listening on the configured address",
			"Ports below 1024 need elevated privileges on most systems",
			"For tls servers, check that tls.cert and tls.key point at a valid pair",
		})
		return err
	}

	if !serveDashboard {
		return sup.Run(cmd.Context())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := ui.NewHeader("sockserve", "sockserve "+strings.Join(os.Args[1:], " "), map[string]string{
		"Config":  path,
		"Servers": strconv.Itoa(len(sup.Names())),
	})
	dashErr := ui.RunDashboard(ctx, sup, header, sup.Done())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(dashErr, sup.Shutdown(shutdownCtx))
}

// resolveLogLevel picks the log level for serve. The flag wins over the
// config file. With the dashboard on, only the environment can enable
// logging since the dashboard owns the terminal.
func resolveLogLevel(flag, configured string, dashboard bool) string {
	if dashboard {
		return os.Getenv(logging.LogLevelEnvVar)
	}
	if flag != "" {
		return flag
	}
	if configured != "" {
		return configured
	}
	if env := os.Getenv(logging.LogLevelEnvVar); env != "" {
		return env
	}
	return "info"
}

// Scan command flags
var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find sockserve servers on the local network",
	Long: `Browse mDNS for servers started with 'sockserve serve --advertise'
and print their address, service and transport.`,
	Example: `  # Scan for 5 seconds (default)
  sockserve scan

  # Longer scan for busy networks
  sockserve scan --timeout 15s`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for announcements")
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("sockserve", "sockserve scan", map[string]string{
		"Service": discovery.ServiceType,
		"Timeout": scanTimeout.String(),
	})

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	instances, err := scanner.Scan(cmd.Context())
	if err != nil {
		printer.PrintError("Scan failed", err, []string{
			"Check that multicast traffic is allowed on this network",
		})
		return err
	}

	if len(instances) == 0 {
		printer.PrintWarning("No servers found", map[string]string{
			"Hint": "start servers with 'sockserve serve --advertise'",
		})
		return nil
	}

	for i, inst := range instances {
		printer.Linef("%d. %s", i+1, inst.String())
		printer.Linef("   Host:    %s", inst.Hostname)
		printer.Linef("   URL:     %s", inst.URL())
		if v := inst.GetMetadata("version"); v != "" {
			printer.Linef("   Version: %s", v)
		}
		printer.Blank()
	}

	printer.PrintSuccess(fmt.Sprintf("Found %d server(s)", len(instances)), nil)
	return nil
}

// Config command flags
var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ResolvePath(configPath)
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}

		cfg := config.Default()
		if err := cfg.Save(path); err != nil {
			return err
		}

		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration written", map[string]string{
			"Path":    path,
			"Servers": strconv.Itoa(len(cfg.Servers)),
		})
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration serve would use, with defaults applied.
If no configuration file exists the built-in defaults are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ResolvePath(configPath)
		if err != nil {
			return err
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		data, err := cfg.Marshal()
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ResolvePath(configPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing configuration file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
