package mistral_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/datamade/la-metro-translations/internal/mistral"
	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *mistral.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return mistral.New("test-key", mistral.WithBaseURL(srv.URL), mistral.WithChatModel("test-chat"))
}

func TestUploadBatchFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/files", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "batch", r.FormValue("purpose"))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		assert.Equal(t, "batch.jsonl", header.Filename)
		assert.Equal(t, `{"custom_id":"a:1"}`+"\n", string(content))

		_, _ = w.Write([]byte(`{"id":"file-123","filename":"batch.jsonl","purpose":"batch"}`))
	})

	id, err := client.UploadBatchFile(context.Background(), "batch.jsonl", []byte(`{"custom_id":"a:1"}`+"\n"))
	require.NoError(t, err)
	assert.Equal(t, "file-123", id)
}

func TestCreateAndGetBatchJob(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/batch/jobs":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []any{"file-123"}, body["input_files"])
			assert.Equal(t, "/v1/ocr", body["endpoint"])
			assert.Equal(t, "mistral-ocr-latest", body["model"])
			assert.EqualValues(t, 24, body["timeout_hours"])
			_, _ = w.Write([]byte(`{"id":"job-1","status":"QUEUED","created_at":1700000000,"total_requests":2}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/batch/jobs/job-1":
			_, _ = w.Write([]byte(`{"id":"job-1","status":"SUCCESS","output_file":"file-out","total_requests":2,"succeeded_requests":2}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	job, err := client.CreateBatchJob(ctx, models.BatchJobRequest{
		InputFileID:  "file-123",
		Model:        "mistral-ocr-latest",
		Endpoint:     mistral.OCREndpoint,
		TimeoutHours: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, models.JobQueued, job.Status)
	assert.Equal(t, int64(1700000000), job.CreatedAt.Unix())

	job, err = client.GetBatchJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobSuccess, job.Status)
	assert.Equal(t, "file-out", job.OutputFile)
	assert.Equal(t, 2, job.SucceededRequests)
}

func TestDownloadFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/files/file-out/content", r.URL.Path)
		_, _ = w.Write([]byte("line1\nline2\n"))
	})

	rc, err := client.DownloadFile(context.Background(), "file-out")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-chat", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "be faithful", body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Hola "}}]}`))
	})

	out, err := client.Complete(context.Background(), "be faithful", "Translate: Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hola", out)
}

func TestCompleteMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, mistral.ErrMalformedResponse))
	assert.Contains(t, err.Error(), `{"choices":[]}`)
}

func TestAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := client.GetBatchJob(context.Background(), "job-1")
	var apiErr *mistral.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestOCR(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body models.OCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mistral-ocr-latest", body.Model)
		assert.Equal(t, "https://metro.net/a.pdf", body.Document.DocumentURL)
		assert.Equal(t, "markdown", body.TableFormat)
		assert.True(t, body.IncludeImageBase64)
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"Hello","tables":[],"images":[],"hyperlinks":[]}]}`))
	})

	pages, err := client.OCR(context.Background(), "https://metro.net/a.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Hello", pages[0].Markdown)
}

func TestMissingAPIKey(t *testing.T) {
	client := mistral.New("")
	_, err := client.GetBatchJob(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISTRAL_API_KEY")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", mistral.Truncate([]byte("short"), 10))
	assert.Equal(t, "abc...", mistral.Truncate([]byte("abcdef"), 3))

	// "ñ" is two bytes; cutting at 2 would split it.
	got := mistral.Truncate([]byte("añb"), 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))

	got = mistral.Truncate([]byte("日本語"), 4)
	assert.Equal(t, "日...", got)
}
