// Command restyle rewrites a headline in an author's voice from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/headline-restyler/internal/app"
	"github.com/tjfontaine/headline-restyler/internal/config"
	"github.com/tjfontaine/headline-restyler/internal/domain"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout, stderr)
	if err := cmd.Run(ctx, args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "restyle",
		Usage:     "Transform headlines using different LLM providers",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "headline", Usage: "the headline to transform", Required: true},
			&cli.StringFlag{Name: "author", Usage: "the author whose style to mimic", Required: true},
			&cli.StringFlag{Name: "body", Usage: "the article body used for context", Required: true},
			&cli.StringFlag{
				Name:    "provider",
				Usage:   "primary provider (test, openai)",
				Value:   string(domain.DefaultProvider),
				Sources: cli.EnvVars("RESTYLE_PROVIDER"),
			},
			&cli.StringFlag{
				Name:  "fallback-provider",
				Usage: "provider tried once if the primary fails; empty disables",
				Value: string(domain.DefaultFallback),
			},
			&cli.StringFlag{Name: "output-format", Usage: "text or json", Value: "text"},
			&cli.StringFlag{Name: "config", Usage: "path to config.yaml", Value: config.DefaultPath},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: "warn"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format := cmd.String("output-format")
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown output format %q", format)
			}

			cfg, err := config.LoadFile(cmd.String("config"))
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
				Level: app.ParseLogLevel(cmd.String("log-level")),
			}))

			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []domain.RequestOption{domain.WithProvider(domain.ProviderKind(cmd.String("provider")))}
			if fb := cmd.String("fallback-provider"); fb != "" {
				opts = append(opts, domain.WithFallback(domain.ProviderKind(fb)))
			} else {
				opts = append(opts, domain.WithoutFallback())
			}

			req := domain.NewTransformRequest(cmd.String("headline"), cmd.String("author"), cmd.String("body"), opts...)
			result, err := a.Service.TransformHeadline(ctx, req)
			if err != nil {
				return err
			}

			return printResult(stdout, format, result)
		},
	}
}

func printResult(w io.Writer, format string, result *domain.TransformResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	_, err := fmt.Fprintf(w, "Original headline: %s\nTransformed headline: %s\nProvider used: %s\n",
		result.OriginalHeadline, result.TransformedHeadline, result.ProviderUsed)
	return err
}
