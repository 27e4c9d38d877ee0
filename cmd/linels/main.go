// Package main provides the linels CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kpumuk/line-weaver/internal/lsp"
	"github.com/kpumuk/line-weaver/internal/transform"
)

func main() {
	if err := newRootCommand((*lsp.Server).RunStdio).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "linels:", err)
		os.Exit(1)
	}
}

// newRootCommand builds the linels command. serve runs the configured server until
// the client exits.
func newRootCommand(serve func(*lsp.Server, context.Context) error) *cobra.Command {
	var (
		logLevel string
		locale   string
	)
	root := &cobra.Command{
		Use:           "linels",
		Short:         "Line operations language server over stdio",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			tag, err := transform.ParseLocale(locale)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			server := lsp.NewServer(
				lsp.WithLogger(logger),
				lsp.WithOptions(transform.Options{Locale: tag}),
			)
			logger.Info("serving", "locale", tag.String())
			return serve(server, cmd.Context())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr (debug, info, warn, error)")
	root.Flags().StringVar(&locale, "locale", "", "default BCP 47 locale for sort-lines (default $"+transform.LocaleEnv+")")
	return root
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}
