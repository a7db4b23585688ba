package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// maxPDFBytes bounds the source download used for page counting.
const maxPDFBytes = 200 << 20

// PDFPageCounter counts the pages of a hosted PDF with pdfcpu.
type PDFPageCounter struct {
	client *http.Client
}

// NewPDFPageCounter returns a counter using client, or a client with a
// two minute timeout when nil.
func NewPDFPageCounter(client *http.Client) *PDFPageCounter {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &PDFPageCounter{client: client}
}

// CountPages downloads the PDF at url and returns its page count.
func (c *PDFPageCounter) CountPages(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > maxPDFBytes {
		return 0, fmt.Errorf("%s is larger than %d bytes", url, maxPDFBytes)
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", url, err)
	}
	return n, nil
}
