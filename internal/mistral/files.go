package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// File is an uploaded file.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int    `json:"bytes"`
	Purpose  string `json:"purpose"`
}

// UploadFile uploads content with the given purpose ("batch", "ocr", ...).
func (c *Client) UploadFile(ctx context.Context, filename string, content []byte, purpose string) (File, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", purpose); err != nil {
		return File{}, fmt.Errorf("mistral: write purpose field: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return File{}, fmt.Errorf("mistral: create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return File{}, fmt.Errorf("mistral: write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return File{}, fmt.Errorf("mistral: close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/files", &buf)
	if err != nil {
		return File{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.send(req)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, fmt.Errorf("mistral: read upload response: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil || f.ID == "" {
		return File{}, fmt.Errorf("%w: upload returned no file id; body=%s", ErrMalformedResponse, Truncate(raw, 512))
	}
	return f, nil
}

// UploadBatchFile uploads a JSONL batch input file and returns its id.
func (c *Client) UploadBatchFile(ctx context.Context, filename string, content []byte) (string, error) {
	f, err := c.UploadFile(ctx, filename, content, "batch")
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

// DownloadFile streams the content of a file. The caller closes the reader.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/files/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
