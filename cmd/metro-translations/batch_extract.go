package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/datamade/la-metro-translations/internal/models"
)

var batchExtractCmd = &cobra.Command{
	Use:   "batch-extract",
	Short: "Run one batch OCR pass over documents missing extracted content",
	RunE:  runBatchExtract,
}

var batchLanguages []string

func init() {
	batchExtractCmd.Flags().StringSliceVar(&batchLanguages, "language", nil, "Languages handed to the translation workflow (defaults to TARGET_LANGUAGES)")

	rootCmd.AddCommand(batchExtractCmd)
}

func runBatchExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, _, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	extractor, err := rt.NewExtractor(ctx)
	if err != nil {
		return err
	}
	if d := rt.Config.ExtractRunTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	report, err := extractor.Process(ctx, models.BatchExtractMessage{Languages: batchLanguages})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}
