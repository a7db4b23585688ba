package mistral

import (
	"context"
	"fmt"
	"net/http"

	"github.com/datamade/la-metro-translations/internal/models"
)

type ocrResponse struct {
	Pages []models.Page `json:"pages"`
	Model string        `json:"model"`
}

// OCR extracts the pages of a single hosted document synchronously.
func (c *Client) OCR(ctx context.Context, documentURL string) ([]models.Page, error) {
	req := models.NewOCRRequest(documentURL)
	req.Model = c.ocrModel

	var resp ocrResponse
	raw, err := c.doJSON(ctx, http.MethodPost, OCREndpoint, req, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Pages == nil {
		return nil, fmt.Errorf("%w: ocr response without pages; body=%s", ErrMalformedResponse, Truncate(raw, 512))
	}
	return resp.Pages, nil
}
