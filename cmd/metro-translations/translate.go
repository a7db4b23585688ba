package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datamade/la-metro-translations/internal/services"
	"github.com/datamade/la-metro-translations/internal/translation"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate every extracted document missing a translation",
	RunE:  runTranslate,
}

var (
	translateLanguages []string
	translateForce     bool
)

func init() {
	translateCmd.Flags().StringSliceVar(&translateLanguages, "language", nil, "Target languages (defaults to TARGET_LANGUAGES)")
	translateCmd.Flags().BoolVar(&translateForce, "force", false, "Translate documents that already have a translation")

	rootCmd.AddCommand(translateCmd)
}

func runTranslate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, _, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	translator, err := rt.NewTranslator(ctx)
	if err != nil {
		return err
	}

	languages := rt.Config.TargetLanguages
	if len(translateLanguages) > 0 {
		languages = translateLanguages
	}
	reports := make([]*services.TranslateReport, 0, len(languages))
	for _, lang := range languages {
		report, err := translator.TranslateAll(ctx, translation.NormalizeLanguage(lang), translateForce)
		if err != nil {
			return fmt.Errorf("translate %s: %w", lang, err)
		}
		reports = append(reports, report)
	}
	return printJSON(cmd.OutOrStdout(), reports)
}
