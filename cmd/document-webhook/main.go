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
	webhookInstance *services.WebhookFunction
	once            sync.Once
	initErr         error
)

func init() {
	slog.SetDefault(logger.New("document-webhook"))

	functions.HTTP("HandleNewDocument", handleNewDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func handleNewDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load()
		if initErr != nil {
			return
		}
		var rt *services.Runtime
		rt, initErr = services.NewRuntime(context.Background(), cfg, slog.Default())
		if initErr != nil {
			return
		}
		webhookInstance = rt.NewWebhook()
	})
	if initErr != nil {
		slog.Error("Webhook initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	webhookInstance.ServeHTTP(w, r)
}
