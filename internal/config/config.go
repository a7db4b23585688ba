// Package config loads the pipeline configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/datamade/la-metro-translations/internal/gcp"
	"github.com/datamade/la-metro-translations/internal/translation"
)

// Translation providers.
const (
	ProviderVertex  = "vertex"
	ProviderMistral = "mistral"
)

// Store backends.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Config is the complete runtime configuration.
type Config struct {
	ProjectID      string
	VertexAIRegion string
	VertexModel    string

	MistralAPIKey    string
	MistralBaseURL   string
	OCRModel         string
	MistralChatModel string

	TranslationProvider string
	// SystemPrompt is the translation instruction, read from
	// SYSTEM_PROMPT_FILE when set.
	SystemPrompt string

	BatchTimeoutHours int
	BatchPollInterval time.Duration
	// ExtractRunTimeout bounds one extraction run locally. Zero means the
	// caller picks the bound.
	ExtractRunTimeout time.Duration

	StoreBackend      string
	DatabaseURL       string
	FirestoreDatabase string
	FirestorePrefix   string

	ArtifactBucket   string
	WebhookAPIKey    string
	WorkflowID       string
	WorkflowLocation string

	TargetLanguages      []string
	TranslateConcurrency int
	VerifyPageCounts     bool

	Port string
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	c := &Config{
		ProjectID:      gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:    gcp.GetEnv("VERTEX_MODEL", "gemini-1.5-pro"),

		MistralAPIKey:    gcp.GetEnv("MISTRAL_API_KEY", ""),
		MistralBaseURL:   gcp.GetEnv("MISTRAL_BASE_URL", "https://api.mistral.ai"),
		OCRModel:         gcp.GetEnv("OCR_MODEL", "mistral-ocr-latest"),
		MistralChatModel: gcp.GetEnv("MISTRAL_CHAT_MODEL", "mistral-large-latest"),

		TranslationProvider: strings.ToLower(gcp.GetEnv("TRANSLATION_PROVIDER", ProviderMistral)),
		SystemPrompt:        translation.DefaultSystemPrompt,

		StoreBackend:      strings.ToLower(gcp.GetEnv("STORE_BACKEND", StoreFirestore)),
		DatabaseURL:       gcp.GetEnv("DATABASE_URL", ""),
		FirestoreDatabase: gcp.GetEnv("FIRESTORE_DATABASE", ""),
		FirestorePrefix:   gcp.GetEnv("FIRESTORE_PREFIX", ""),

		ArtifactBucket:   gcp.GetEnv("ARTIFACT_BUCKET", ""),
		WebhookAPIKey:    gcp.GetEnv("WEBHOOK_API_KEY", ""),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),

		Port: gcp.GetEnv("PORT", "8080"),
	}

	var err error
	if c.BatchTimeoutHours, err = getInt("BATCH_TIMEOUT_HOURS", 24); err != nil {
		return nil, err
	}
	if c.BatchPollInterval, err = getDuration("BATCH_POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if c.ExtractRunTimeout, err = getDuration("EXTRACT_RUN_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if c.TranslateConcurrency, err = getInt("TRANSLATE_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if c.VerifyPageCounts, err = getBool("VERIFY_PAGE_COUNTS", false); err != nil {
		return nil, err
	}

	for _, lang := range splitAndTrim(gcp.GetEnv("TARGET_LANGUAGES", "spanish")) {
		c.TargetLanguages = append(c.TargetLanguages, translation.NormalizeLanguage(lang))
	}

	if path := gcp.GetEnv("SYSTEM_PROMPT_FILE", ""); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read SYSTEM_PROMPT_FILE: %w", err)
		}
		if prompt := strings.TrimSpace(string(b)); prompt != "" {
			c.SystemPrompt = prompt
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.TranslationProvider {
	case ProviderVertex, ProviderMistral:
	default:
		return fmt.Errorf("TRANSLATION_PROVIDER must be %q or %q, got %q", ProviderVertex, ProviderMistral, c.TranslationProvider)
	}
	switch c.StoreBackend {
	case StoreFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID must be set for the firestore store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of firestore, postgres, memory, got %q", c.StoreBackend)
	}
	if c.BatchTimeoutHours <= 0 {
		return fmt.Errorf("BATCH_TIMEOUT_HOURS must be positive")
	}
	if c.BatchPollInterval <= 0 {
		return fmt.Errorf("BATCH_POLL_INTERVAL must be positive")
	}
	if c.ExtractRunTimeout < 0 {
		return fmt.Errorf("EXTRACT_RUN_TIMEOUT must not be negative")
	}
	if c.TranslateConcurrency <= 0 {
		return fmt.Errorf("TRANSLATE_CONCURRENCY must be positive")
	}
	if c.WorkflowID != "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID must be set when WORKFLOW_ID is set")
	}
	return nil
}

func getInt(key string, fallback int) (int, error) {
	v := gcp.GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

// getDuration accepts a Go duration ("10s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := gcp.GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := gcp.GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
