package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/datamade/la-metro-translations/internal/config"
	"github.com/datamade/la-metro-translations/internal/logger"
	"github.com/datamade/la-metro-translations/internal/services"
)

var (
	translatorInstance *services.TranslatorFunction
	once               sync.Once
	initErr            error
)

func init() {
	slog.SetDefault(logger.New("document-translator"))

	// "HandleTranslateDocument" is the entry point name configured in GCP.
	functions.HTTP("HandleTranslateDocument", handleTranslateDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func initialize(ctx context.Context) (*services.TranslatorFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	rt, err := services.NewRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	return rt.NewTranslator(ctx)
}

func handleTranslateDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		translatorInstance, initErr = initialize(context.Background())
	})
	if initErr != nil {
		slog.Error("Translator initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	translatorInstance.ServeHTTP(w, r)
}
