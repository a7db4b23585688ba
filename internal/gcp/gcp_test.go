package gcp

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("METRO_TEST_SET", "value")
	t.Setenv("METRO_TEST_EMPTY", "")
	assert.Equal(t, "value", GetEnv("METRO_TEST_SET", "fallback"))
	assert.Equal(t, "fallback", GetEnv("METRO_TEST_EMPTY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("METRO_TEST_UNSET_KEY", "fallback"))
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/metro-artifacts/bill_document/7/spanish-abc.md",
		ObjectURL("metro-artifacts", "bill_document/7/spanish-abc.md"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/markdown; charset=utf-8", contentType("a/b.md"))
	assert.Equal(t, "application/pdf", contentType("a/b.pdf"))
	assert.Equal(t, "application/octet-stream", contentType("a/b"))
}

func TestIsPreconditionFailed(t *testing.T) {
	wrapped := fmt.Errorf("write: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})
	assert.True(t, isPreconditionFailed(wrapped))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isPreconditionFailed(errors.New("boom")))
}

func TestExtractText(t *testing.T) {
	assert.Empty(t, extractText(nil))
	assert.Empty(t, extractText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hola "), genai.Text("mundo")}},
		}},
	}
	assert.Equal(t, "Hola mundo", extractText(resp))
}
