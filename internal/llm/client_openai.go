package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"umaai/internal/logging"
)

// openAISystemPrompt is the provider envelope for OpenAI. The document itself
// is identical for both providers.
const openAISystemPrompt = "あなたは競馬データ分析の専門家です。ユーザーから渡されるデータと条件だけに基づいて、指定された出力形式のMarkdownで日本語で回答してください。"

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey              string
	BaseURL             string
	Model               string
	MaxCompletionTokens int
	Timeout             time.Duration
	MinInterval         time.Duration
}

// DefaultOpenAIConfig returns the defaults for apiKey.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:              apiKey,
		BaseURL:             "https://api.openai.com/v1",
		Model:               "gpt-4o-mini",
		MaxCompletionTokens: 16000,
		Timeout:             120 * time.Second,
		MinInterval:         100 * time.Millisecond,
	}
}

// OpenAIClient implements Provider for the chat completions API.
type OpenAIClient struct {
	apiKey              string
	baseURL             string
	model               string
	maxCompletionTokens int
	timeout             time.Duration
	httpClient          *http.Client
	limiter             *rate.Limiter
}

// NewOpenAIClient creates a client with default settings.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	if config.Model == "" {
		config.Model = DefaultModel(ProviderOpenAI)
	}
	if config.MaxCompletionTokens <= 0 {
		config.MaxCompletionTokens = 16000
	}
	return &OpenAIClient{
		apiKey:              config.APIKey,
		baseURL:             strings.TrimRight(config.BaseURL, "/"),
		model:               config.Model,
		maxCompletionTokens: config.MaxCompletionTokens,
		timeout:             config.Timeout,
		httpClient:          &http.Client{},
		limiter:             newLimiter(config.MinInterval),
	}
}

// Name implements Provider.
func (c *OpenAIClient) Name() string { return ProviderOpenAI }

// Model implements Provider.
func (c *OpenAIClient) Model() string { return c.model }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model               string          `json:"model"`
	Messages            []openAIMessage `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Send implements Provider. The document is the user message.
func (c *OpenAIClient) Send(ctx context.Context, document string) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: KindInvalidCredential, Provider: ProviderOpenAI, Message: "API key not configured"}
	}

	ctx, cancel, err := pace(ctx, ProviderOpenAI, c.limiter, c.timeout)
	defer cancel()
	if err != nil {
		return "", err
	}

	startTime := time.Now()
	logging.APIDebug("[OpenAI] Send: model=%s document_len=%d", c.model, len(document))

	jsonData, err := json.Marshal(openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: document},
		},
		MaxCompletionTokens: c.maxCompletionTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIDebug("[OpenAI] Send: request failed after %v: %v", time.Since(startTime), err)
		return "", transient(ProviderOpenAI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transient(ProviderOpenAI, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		e := classifyStatus(ProviderOpenAI, resp.StatusCode, body)
		if e.Kind.Retryable() {
			logging.APIDebug("[OpenAI] Send: status %d kind=%s", resp.StatusCode, e.Kind)
		} else {
			logging.APIError("[OpenAI] Send: status %d kind=%s: %s", resp.StatusCode, e.Kind, e.Message)
		}
		return "", e
	}

	var openaiResp openAIResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", malformed(ProviderOpenAI, "failed to parse response: %v", err)
	}
	if openaiResp.Error != nil {
		return "", &Error{Kind: KindProviderRejected, Provider: ProviderOpenAI, Status: resp.StatusCode, Message: openaiResp.Error.Message}
	}
	if len(openaiResp.Choices) == 0 {
		return "", malformed(ProviderOpenAI, "no completion returned")
	}

	text := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
	if text == "" {
		return "", malformed(ProviderOpenAI, "empty content (finish_reason=%s)", openaiResp.Choices[0].FinishReason)
	}

	logging.API("[OpenAI] Send: completed in %v prompt_tokens=%d completion_tokens=%d",
		time.Since(startTime), openaiResp.Usage.PromptTokens, openaiResp.Usage.CompletionTokens)
	return text, nil
}
