package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/llm"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float32         `json:"temperature"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

var errNoChoices = errors.New("openai: response has no choices")

// Complete implements llm.Completer with a single chat/completions call.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	start := time.Now()
	attrs := append(common.LogAttrs(ctx), "model", req.Model)

	body := chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	raw, err := llm.PostJSON(ctx, c.http, c.endpoint, body,
		map[string]string{"Authorization": "Bearer " + c.apiKey}, c.log)
	if err != nil {
		return "", err
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		c.log.Error("llm.complete.decode_failed", append(attrs, "error", err, "bytes", len(raw))...)
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errNoChoices
	}

	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	c.log.Debug("llm.complete.ok", append(attrs,
		"finish_reason", cr.Choices[0].FinishReason,
		"prompt_tokens", cr.Usage.PromptTokens,
		"completion_tokens", cr.Usage.CompletionTokens,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return content, nil
}
