package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flemzord/quill/internal/config"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			var opts config.StarterOptions
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				accessible, _ := cmd.Flags().GetBool("accessible")
				if err := askStarter(&opts, accessible); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return err
				}
			}

			raw, err := config.Starter(opts)
			if err != nil {
				return err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	cmd.Flags().Bool("accessible", false, "Use plain prompts suited to screen readers")
	return cmd
}

func askStarter(opts *config.StarterOptions, accessible bool) error {
	opts.Provider = config.ProviderGemini
	opts.Backend = config.BackendMemory
	opts.Bind = "127.0.0.1:8080"

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Generation backend").
				Options(
					huh.NewOption("Google Gemini", config.ProviderGemini),
					huh.NewOption("OpenAI-compatible endpoint", config.ProviderOpenAICompatible),
				).
				Value(&opts.Provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Placeholder("http://localhost:11434/v1").
				Value(&opts.BaseURL),
			huh.NewInput().
				Title("Model").
				Value(&opts.Model),
		).WithHideFunc(func() bool { return opts.Provider != config.ProviderOpenAICompatible }),
		huh.NewGroup(
			huh.NewInput().
				Title("Document service URL").
				Description("Leave empty to run without document tools.").
				Value(&opts.DocsURL),
			huh.NewSelect[string]().
				Title("Session storage").
				Options(
					huh.NewOption("In memory", config.BackendMemory),
					huh.NewOption("SQLite file", config.BackendSQLite),
				).
				Value(&opts.Backend),
			huh.NewInput().
				Title("Gateway bind address").
				Value(&opts.Bind),
			huh.NewConfirm().
				Title("Require a bearer token (from $QUILL_API_TOKEN)?").
				Value(&opts.BearerToken),
		),
	).WithAccessible(accessible).Run()
	return err
}
