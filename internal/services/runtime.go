package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datamade/la-metro-translations/internal/config"
	"github.com/datamade/la-metro-translations/internal/gcp"
	"github.com/datamade/la-metro-translations/internal/mistral"
	"github.com/datamade/la-metro-translations/internal/ocr"
	"github.com/datamade/la-metro-translations/internal/store"
	"github.com/datamade/la-metro-translations/internal/translation"
)

// Runtime builds the production collaborators from a Config and closes
// them again. The CLI and every Cloud Function share it.
type Runtime struct {
	Config *config.Config
	Store  store.Store
	Logger *slog.Logger

	mistral *mistral.Client
	closers []func() error
}

// NewRuntime opens the configured store.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.FirestoreDatabase)
		if err != nil {
			return nil, err
		}
		rt.Store = store.NewFirestore(client, cfg.FirestorePrefix)
	case config.StorePostgres:
		pg, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		rt.Store = pg
	case config.StoreMemory:
		rt.Store = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	rt.closers = append(rt.closers, rt.Store.Close)
	return rt, nil
}

// Mistral returns the shared Mistral client.
func (rt *Runtime) Mistral() *mistral.Client {
	if rt.mistral == nil {
		rt.mistral = mistral.New(rt.Config.MistralAPIKey,
			mistral.WithBaseURL(rt.Config.MistralBaseURL),
			mistral.WithOCRModel(rt.Config.OCRModel),
			mistral.WithChatModel(rt.Config.MistralChatModel),
		)
	}
	return rt.mistral
}

// Orchestrator returns a batch OCR orchestrator on the Mistral client.
func (rt *Runtime) Orchestrator() *ocr.Orchestrator {
	return ocr.New(rt.Mistral(), ocr.Config{
		Model:        rt.Config.OCRModel,
		Endpoint:     mistral.OCREndpoint,
		TimeoutHours: rt.Config.BatchTimeoutHours,
		PollInterval: rt.Config.BatchPollInterval,
	}, rt.Logger)
}

// Completer returns the configured translation provider.
func (rt *Runtime) Completer(ctx context.Context) (translation.Completer, error) {
	switch rt.Config.TranslationProvider {
	case config.ProviderVertex:
		vc, err := gcp.NewVertexClient(ctx, rt.Config.ProjectID, rt.Config.VertexAIRegion, rt.Config.VertexModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		rt.closers = append(rt.closers, vc.Close)
		return vc, nil
	case config.ProviderMistral:
		return rt.Mistral(), nil
	}
	return nil, fmt.Errorf("unknown translation provider %q", rt.Config.TranslationProvider)
}

// Artifacts returns the artifact store, or nil when no bucket is configured.
func (rt *Runtime) Artifacts(ctx context.Context) (ArtifactSaver, error) {
	if rt.Config.ArtifactBucket == "" {
		return nil, nil
	}
	a, err := gcp.NewArtifactStore(ctx, rt.Config.ArtifactBucket)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, a.Close)
	return a, nil
}

// Workflow returns the workflow launcher, or nil when no workflow is configured.
func (rt *Runtime) Workflow(ctx context.Context) (WorkflowLauncher, error) {
	if rt.Config.WorkflowID == "" {
		return nil, nil
	}
	w, err := gcp.NewWorkflowLauncher(ctx, rt.Config.ProjectID, rt.Config.WorkflowLocation, rt.Config.WorkflowID)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, w.Close)
	return w, nil
}

// NewExtractor wires an ExtractorFunction.
func (rt *Runtime) NewExtractor(ctx context.Context) (*ExtractorFunction, error) {
	artifacts, err := rt.Artifacts(ctx)
	if err != nil {
		return nil, err
	}
	workflow, err := rt.Workflow(ctx)
	if err != nil {
		return nil, err
	}
	deps := ExtractorDeps{
		Store:        rt.Store,
		Orchestrator: rt.Orchestrator(),
		Artifacts:    artifacts,
		Workflow:     workflow,
		Logger:       rt.Logger,
	}
	if rt.Config.VerifyPageCounts {
		deps.Pages = NewPDFPageCounter(nil)
	}
	return NewExtractor(deps, ExtractorConfig{Languages: rt.Config.TargetLanguages}), nil
}

// NewTranslator wires a TranslatorFunction.
func (rt *Runtime) NewTranslator(ctx context.Context) (*TranslatorFunction, error) {
	completer, err := rt.Completer(ctx)
	if err != nil {
		return nil, err
	}
	artifacts, err := rt.Artifacts(ctx)
	if err != nil {
		return nil, err
	}
	transform := translation.New(completer, rt.Config.SystemPrompt, rt.Logger)
	return NewTranslator(rt.Store, transform, artifacts, rt.Logger,
		TranslatorConfig{Concurrency: rt.Config.TranslateConcurrency}), nil
}

// NewWebhook wires a WebhookFunction.
func (rt *Runtime) NewWebhook() *WebhookFunction {
	return NewWebhook(rt.Store, rt.Config.WebhookAPIKey, rt.Logger)
}

// Close releases every client opened by the runtime.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
