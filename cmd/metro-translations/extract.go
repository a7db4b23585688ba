package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datamade/la-metro-translations/internal/markdown"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "OCR a single PDF synchronously and print its markdown",
	RunE:  runExtract,
}

var extractURL string

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "Public URL of the PDF to extract")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if extractURL == "" {
		return errors.New("--url is required")
	}
	ctx := cmd.Context()
	rt, log, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	pages, err := rt.Mistral().OCR(ctx, extractURL)
	if err != nil {
		return fmt.Errorf("ocr %s: %w", extractURL, err)
	}
	log.Info("Extracted document", "url", extractURL, "pages", len(pages))
	_, err = fmt.Fprint(cmd.OutOrStdout(), markdown.Reassemble(pages))
	return err
}
