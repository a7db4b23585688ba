package ocr

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/datamade/la-metro-translations/internal/models"
)

// requestLine is one line of a batch input file.
type requestLine struct {
	CustomID string            `json:"custom_id"`
	Body     models.OCRRequest `json:"body"`
}

// resultLine is one line of a batch output file.
type resultLine struct {
	ID       string `json:"id"`
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       *struct {
			Pages []models.Page `json:"pages"`
		} `json:"body"`
	} `json:"response"`
	Error json.RawMessage `json:"error"`
}

// pages returns the OCR pages of a successful result line.
func (l resultLine) pages() ([]models.Page, error) {
	if len(l.Error) > 0 && string(l.Error) != "null" {
		return nil, fmt.Errorf("request failed: %s", l.Error)
	}
	if l.Response == nil || l.Response.Body == nil || l.Response.Body.Pages == nil {
		return nil, fmt.Errorf("result has no response pages")
	}
	if code := l.Response.StatusCode; code != 0 && (code < 200 || code > 299) {
		return nil, fmt.Errorf("request returned status %d", code)
	}
	return l.Response.Body.Pages, nil
}

// encodeBatch writes one JSON line per document.
func encodeBatch(docs []models.SourceDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		line := requestLine{
			CustomID: doc.DocumentKey.String(),
			Body:     models.NewOCRRequest(doc.SourceURL),
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode batch line for %s: %w", line.CustomID, err)
		}
	}
	return buf.Bytes(), nil
}

// decodeLines yields each non-empty line of r together with its decode
// error. Output files hold base64 images, so lines can be many megabytes.
func decodeLines(r io.Reader) iter.Seq2[resultLine, error] {
	return func(yield func(resultLine, error) bool) {
		br := bufio.NewReaderSize(r, 1<<20)
		for {
			raw, readErr := br.ReadBytes('\n')
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				var line resultLine
				err := json.Unmarshal(trimmed, &line)
				if err != nil {
					err = fmt.Errorf("decode result line: %w", err)
				}
				if !yield(line, err) {
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				yield(resultLine{}, fmt.Errorf("read result file: %w", readErr))
				return
			}
		}
	}
}
