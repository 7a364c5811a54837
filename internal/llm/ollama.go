// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaURL uses an explicit IPv4 address to avoid IPv6 resolution
// issues with localhost.
const DefaultOllamaURL = "http://127.0.0.1:11434"

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// OllamaProvider generates answers with a local Ollama server.
type OllamaProvider struct {
	config     Config
	httpClient *http.Client
}

// NewOllamaProvider creates a provider, filling zero config values.
func NewOllamaProvider(config Config) *OllamaProvider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = "qwen2.5:7b"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	return &OllamaProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// GenerateAnswer implements Generator.
func (p *OllamaProvider) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaChatRequest{
		Model: p.config.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: p.config.SystemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	opts := map[string]any{}
	if p.config.Temperature > 0 {
		opts["temperature"] = p.config.Temperature
	}
	if p.config.MaxTokens > 0 {
		opts["num_predict"] = p.config.MaxTokens
	}
	if len(opts) > 0 {
		reqBody.Options = opts
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &ClientError{Type: ErrTypeUnavailable, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &ClientError{Type: ErrTypeModelNotFound, Message: "model not found: " + p.config.Model}
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unexpected status from Ollama: " + resp.Status
		var errResp ollamaErrorResponse
		if raw, rerr := io.ReadAll(io.LimitReader(resp.Body, 4096)); rerr == nil && json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	answer := strings.TrimSpace(result.Message.Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}
