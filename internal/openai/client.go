// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openai is a minimal client for the OpenAI chat completions API,
// covering the two call shapes the pipeline needs: free-text completion and
// schema-constrained structured output.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/book-analyzer/internal/httputil"
)

// defaultBaseURL is the public OpenAI API root. Clients override BaseURL in
// tests to point at a local server.
const defaultBaseURL = "https://api.openai.com/v1"

// Client calls the OpenAI chat completions endpoint.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
}

// Message is a single message in the chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for the chat completions API.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// responseFormat constrains the model output, either to plain JSON or to a
// strict JSON schema.
type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

// jsonSchema names a strict schema the model response must conform to.
type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the response body from the chat completions API.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// chatChoice is one candidate completion in the API response.
type chatChoice struct {
	Message struct {
		Content string `json:"content"`
		Refusal string `json:"refusal,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Chat sends a system and user message and returns the free-text completion.
func (c *Client) Chat(ctx context.Context, model, system, user string) (string, error) {
	return c.complete(ctx, chatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
}

// ChatStructured sends a system and user message with a strict JSON schema
// response format and returns the raw JSON text of the completion. The
// caller unmarshals it into its expected shape.
func (c *Client) ChatStructured(ctx context.Context, model, system, user, schemaName string, schema json.RawMessage) (string, error) {
	return c.complete(ctx, chatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   schemaName,
				Strict: true,
				Schema: schema,
			},
		},
	})
}

func (c *Client) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding OpenAI response: %w", err)
	}

	if len(cResp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}

	choice := cResp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused the request: %s", choice.Message.Refusal)
	}
	if choice.Message.Content == "" {
		return "", fmt.Errorf("OpenAI API returned empty content")
	}

	return choice.Message.Content, nil
}
