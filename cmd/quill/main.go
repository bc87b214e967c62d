// Package main is the entry point for the quill CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/quill/internal/config"
	"github.com/flemzord/quill/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quill",
		Short:         "A bounded-iteration reasoning agent over a document service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), serveCmd(), queryCmd(), mcpCmd(), configCmd(), initCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quill %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return a.Serve(cmd.Context())
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve quill as an MCP tool server over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return a.ServeMCP(cmd.Context())
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cfg, path, err := loadConfig(cmd, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%s)\n", path)
			fmt.Fprintf(out, "  provider: %s\n", cfg.Provider.Kind)
			fmt.Fprintf(out, "  sessions: %s\n", cfg.Sessions.Backend)
			fmt.Fprintf(out, "  gateway:  %s\n", cfg.Gateway.Bind)
			if cfg.Tools.DocumentService.BaseURL == "" {
				fmt.Fprintln(out, "  tools:    none (no document service)")
			} else {
				fmt.Fprintf(out, "  tools:    %s\n", cfg.Tools.DocumentService.BaseURL)
			}
			return nil
		},
	})
	return cmd
}

// loadConfig resolves, loads and validates the configuration. An explicit
// path wins over --config, which wins over the search path. When nothing
// is found, the built-in defaults are used.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, string, error) {
	if path == "" {
		path, _ = cmd.Flags().GetString("config")
	}
	if path == "" {
		found, err := config.Find()
		switch {
		case errors.Is(err, config.ErrNotFound):
			return config.Default(), "built-in defaults", nil
		case err != nil:
			return nil, "", err
		}
		path = found
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, path, nil
}

func buildApp(cmd *cobra.Command) (*app.App, error) {
	cfg, _, err := loadConfig(cmd, "")
	if err != nil {
		return nil, err
	}
	return app.Build(cmd.Context(), cfg, app.Options{Version: version})
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Error("shutdown error", "error", err)
	}
}
