package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// AnthropicGenerator calls the Anthropic messages API over plain HTTP.
type AnthropicGenerator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnthropicGenerator(apiKey, modelName string) *AnthropicGenerator {
	if modelName == "" {
		modelName = "claude-sonnet-4-5"
	}
	return &AnthropicGenerator{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: "https://api.anthropic.com",
		client:  http.DefaultClient,
	}
}

func (g *AnthropicGenerator) Model() string {
	return g.model
}

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":      g.model,
		"max_tokens": params.MaxTokens,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": params.Temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &backendError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding anthropic response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", errEmptyResponse
	}
	return result.Content[0].Text, nil
}
