// Package main is the command line entry point for running the extraction
// and translation pipeline outside Cloud Functions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/datamade/la-metro-translations/internal/config"
	"github.com/datamade/la-metro-translations/internal/logger"
	"github.com/datamade/la-metro-translations/internal/services"
)

var rootCmd = &cobra.Command{
	Use:           "metro-translations",
	Short:         "LA Metro document extraction and translation",
	Long:          "Extracts markdown from LA Metro board documents with batch OCR and translates it into the configured languages.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRuntime loads configuration and opens the store.
func newRuntime(ctx context.Context) (*services.Runtime, *slog.Logger, error) {
	log := logger.New("metro-translations")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	rt, err := services.NewRuntime(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}
	return rt, log, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
