// Package translation turns extracted markdown into another language while
// keeping images, links, tables and page markers intact.
package translation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/datamade/la-metro-translations/internal/markdown"
	"github.com/datamade/la-metro-translations/internal/models"
)

// Completer is a text-completion capability.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Input is one document to translate.
type Input struct {
	Key       models.DocumentKey
	SourceURL string
	Language  string
	Markdown  string
}

// Transform translates extracted content through a Completer.
type Transform struct {
	completer    Completer
	systemPrompt string
	logger       *slog.Logger
}

// New creates a Transform. An empty systemPrompt selects DefaultSystemPrompt.
func New(completer Completer, systemPrompt string, logger *slog.Logger) *Transform {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transform{completer: completer, systemPrompt: systemPrompt, logger: logger}
}

// SystemPrompt returns the instruction sent with every request.
func (t *Transform) SystemPrompt() string { return t.systemPrompt }

// refusalPhrases mark a response where the model declined the task.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"i can't assist",
	"as a large language model",
	"as an ai language model",
}

// Translate returns the translated markdown and true, or "" and false when
// the document should be skipped. Failures are logged, never returned.
func (t *Transform) Translate(ctx context.Context, in Input) (string, bool) {
	logCtx := t.logger.With(
		"documentType", in.Key.DocumentType,
		"documentId", in.Key.DocumentID,
		"sourceUrl", in.SourceURL,
		"language", in.Language,
	)
	if strings.TrimSpace(in.Markdown) == "" {
		logCtx.Warn("Content is empty. Nothing to translate.")
		return "", false
	}

	encoded, images := markdown.ExtractImages(in.Markdown)
	logCtx.Debug("Requesting translation.", "cachedImages", images.Len(), "chars", len(encoded))

	resp, err := t.completer.Complete(ctx, t.systemPrompt, userMessage(in.Language, encoded))
	if err != nil {
		logCtx.Error("Translation request failed. Skipping document.", "error", err)
		return "", false
	}

	translated := stripFences(resp, in.Markdown)
	if translated == "" {
		logCtx.Error("Translation response was empty. Skipping document.", "response", resp)
		return "", false
	}
	if phrase, ok := refusal(translated, in.Markdown); ok {
		logCtx.Error("Translation response indicates refusal. Skipping document.", "phrase", phrase, "response", translated)
		return "", false
	}

	translated, missing := images.Restore(translated)
	for _, label := range missing {
		logCtx.Warn("Image placeholder missing from translation.", "label", label)
	}
	for _, problem := range markdown.CompareStructure(in.Markdown, translated) {
		logCtx.Warn("Translation lost document structure.", "problem", problem)
	}

	logCtx.Info("Translation complete.", "chars", len(translated))
	return translated, true
}

// stripFences removes a code fence wrapped around the whole response,
// unless the source itself opens with one.
func stripFences(resp, source string) string {
	out := strings.TrimSpace(resp)
	if strings.HasPrefix(strings.TrimSpace(source), "```") {
		return out
	}
	if !strings.HasPrefix(out, "```") || !strings.HasSuffix(out, "```") {
		return out
	}
	out = strings.TrimPrefix(out, "```markdown")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

// refusal reports the refusal phrase found in resp that the source does not
// already contain.
func refusal(resp, source string) (string, bool) {
	lowerResp := strings.ToLower(resp)
	lowerSource := strings.ToLower(source)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lowerResp, phrase) && !strings.Contains(lowerSource, phrase) {
			return phrase, true
		}
	}
	return "", false
}
