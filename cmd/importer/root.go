package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/contactimport/internal/application"
	"github.com/JonMunkholm/contactimport/internal/config"
	"github.com/JonMunkholm/contactimport/internal/core"
	"github.com/JonMunkholm/contactimport/internal/logging"
)

// cliEnv is what the commands need from the outside world.
type cliEnv struct {
	stdout io.Writer
	stderr io.Writer

	// openService connects to the directory. The returned func releases it.
	openService func(ctx context.Context) (*core.Service, func(), error)
}

func defaultEnv() *cliEnv {
	return &cliEnv{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		openService: openService,
	}
}

func openService(ctx context.Context) (*core.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	app, err := application.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return app.Service, app.Close, nil
}

type rootOptions struct {
	jsonOutput bool
	logLevel   string
	logFormat  string
}

func newRootCmd(env *cliEnv) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "importer",
		Short:        "Import contacts from CSV and XLSX files",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so stdout stays parseable.
			slog.SetDefault(logging.New(env.stderr, opts.logLevel, opts.logFormat))
		},
	}
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)

	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", envOr("LOG_FORMAT", "text"), "Log format: text or json")

	cmd.AddCommand(
		newRunCmd(env, opts),
		newTemplateCmd(env),
		newSuggestCmd(env, opts),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
