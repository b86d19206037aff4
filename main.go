package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vit0-9/domain_mcp/config"
	"github.com/vit0-9/domain_mcp/pkg/logging"
	"github.com/vit0-9/domain_mcp/pkg/mcp"
	"github.com/vit0-9/domain_mcp/pkg/tools"
)

// Set via ldflags at build time.
var version = "dev"

type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:          "domain-mcp",
		Short:        "Domain intelligence tools over MCP",
		Long:         "domain-mcp serves WHOIS/RDAP, DNS, certificate and availability tools to MCP clients over stdio, or over HTTP.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Version = version

	cmd.AddCommand(newServeCmd(opts), newHTTPCmd(opts), newCallCmd(opts), newToolsCmd())
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdin/stdout (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func newHTTPCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the tools over HTTP with Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := setup(opts)
			if err != nil {
				return err
			}
			defer closer.Close()

			if addr == "" {
				addr = cfg.HTTPAddr
			}
			gin.SetMode(gin.ReleaseMode)
			app := NewApp(newDispatcher(cfg, logger), logger)
			return app.Start(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func newCallCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Run one tool and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := setup(opts)
			if err != nil {
				return err
			}
			defer closer.Close()

			var toolArgs map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}

			out, err := newDispatcher(cfg, logger).Call(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			result := mcp.CallResult(out)
			fmt.Fprintln(cmd.OutOrStdout(), result.Content[0].Text)
			if result.IsError {
				return fmt.Errorf("%s failed: %s", out.Tool, out.Err.Kind)
			}
			return nil
		},
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available tools and their input schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tools.Definitions())
		},
	}
}

func runServe(cmd *cobra.Command, opts *globalOptions) error {
	cfg, logger, closer, err := setup(opts)
	if err != nil {
		return err
	}
	defer closer.Close()

	server := mcp.NewServer(newDispatcher(cfg, logger), logger, version)
	err = server.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		logger.Info("mcp server shutting down")
		return nil
	}
	return err
}

// setup loads configuration and builds the logger. Logs always go to stderr
// because stdout carries protocol traffic.
func setup(opts *globalOptions) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	logger, closer := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}

func newDispatcher(cfg *config.Config, logger *slog.Logger) *tools.Dispatcher {
	return tools.NewDispatcher(newDomainClient(cfg, logger), tools.WithLogger(logger))
}
