package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/datamade/la-metro-translations/internal/config"
	"github.com/datamade/la-metro-translations/internal/logger"
	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/services"
)

// defaultRunTimeout keeps a run inside the event-driven function limit of
// nine minutes so the report is still logged. A job still running at the
// deadline keeps going remotely, and the next trigger submits a new batch
// for the documents that are still missing content.
const defaultRunTimeout = 8*time.Minute + 30*time.Second

var (
	extractorInstance *services.ExtractorFunction
	runTimeout        time.Duration
	once              sync.Once
	initErr           error
)

// pubSubEnvelope is the CloudEvent payload delivered for a Pub/Sub push.
type pubSubEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

func init() {
	slog.SetDefault(logger.New("batch-extractor"))

	// "RunBatchExtract" is the entry point name configured in GCP.
	functions.CloudEvent("RunBatchExtract", runBatchExtract)
}

// main is required by the Go Functions Framework.
func main() {}

func initialize(ctx context.Context) (*services.ExtractorFunction, time.Duration, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, 0, err
	}
	rt, err := services.NewRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return nil, 0, err
	}
	extractor, err := rt.NewExtractor(ctx)
	return extractor, timeoutFor(cfg), err
}

// timeoutFor returns the configured run bound or defaultRunTimeout.
func timeoutFor(cfg *config.Config) time.Duration {
	if cfg.ExtractRunTimeout > 0 {
		return cfg.ExtractRunTimeout
	}
	return defaultRunTimeout
}

func runBatchExtract(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		extractorInstance, runTimeout, initErr = initialize(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var msg models.BatchExtractMessage
	var envelope pubSubEnvelope
	if err := json.Unmarshal(e.Data(), &envelope); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	// An empty message runs with the configured target languages.
	if len(envelope.Message.Data) > 0 {
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
			slog.Error("Failed to unmarshal pub/sub message", "error", err)
			return fmt.Errorf("json.Unmarshal message: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	report, err := extractorInstance.Process(ctx, msg)
	if err != nil {
		return err
	}
	slog.Info("Batch extraction finished",
		"runId", report.RunID,
		"jobId", report.JobID,
		"created", report.Created,
		"failed", report.Failed,
		"stillMissing", report.StillMissing,
		"jobError", report.JobError,
	)
	return nil
}
