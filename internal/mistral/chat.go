package mistral

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends a system instruction and a user message and returns the
// text of the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	var resp chatResponse
	raw, err := c.doJSON(ctx, http.MethodPost, "/v1/chat/completions", req, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: chat completion without content; body=%s", ErrMalformedResponse, Truncate(raw, 1024))
	}
	return strings.TrimSpace(*resp.Choices[0].Message.Content), nil
}

// Name identifies the provider in logs.
func (c *Client) Name() string { return "mistral:" + c.chatModel }
