package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"umaai/internal/logging"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration // applied when the caller's context has no deadline
	MinInterval time.Duration
}

// DefaultGeminiConfig returns the defaults for apiKey.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:      apiKey,
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Model:       "gemini-2.5-flash",
		Timeout:     120 * time.Second,
		MinInterval: 100 * time.Millisecond,
	}
}

// GeminiClient implements Provider for the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeminiClient creates a client with default settings.
func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(apiKey))
}

// NewGeminiClientWithConfig creates a client with custom config.
func NewGeminiClientWithConfig(config GeminiConfig) *GeminiClient {
	if config.Model == "" {
		config.Model = DefaultModel(ProviderGemini)
	}
	return &GeminiClient{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		model:      config.Model,
		timeout:    config.Timeout,
		httpClient: &http.Client{},
		limiter:    newLimiter(config.MinInterval),
	}
}

// Name implements Provider.
func (c *GeminiClient) Name() string { return ProviderGemini }

// Model implements Provider.
func (c *GeminiClient) Model() string { return c.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Send implements Provider. The document is sent as the only content part.
func (c *GeminiClient) Send(ctx context.Context, document string) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Kind: KindInvalidCredential, Provider: ProviderGemini, Message: "API key not configured"}
	}

	ctx, cancel, err := pace(ctx, ProviderGemini, c.limiter, c.timeout)
	defer cancel()
	if err != nil {
		return "", err
	}

	startTime := time.Now()
	logging.APIDebug("[Gemini] Send: model=%s document_len=%d", c.model, len(document))

	jsonData, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: document}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIDebug("[Gemini] Send: request failed after %v: %v", time.Since(startTime), err)
		return "", transient(ProviderGemini, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transient(ProviderGemini, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		e := classifyStatus(ProviderGemini, resp.StatusCode, body)
		if e.Kind.Retryable() {
			logging.APIDebug("[Gemini] Send: status %d kind=%s", resp.StatusCode, e.Kind)
		} else {
			logging.APIError("[Gemini] Send: status %d kind=%s: %s", resp.StatusCode, e.Kind, e.Message)
		}
		return "", e
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", malformed(ProviderGemini, "failed to parse response: %v", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		if geminiResp.PromptFeedback != nil && geminiResp.PromptFeedback.BlockReason != "" {
			return "", &Error{Kind: KindProviderRejected, Provider: ProviderGemini, Status: resp.StatusCode,
				Message: "blocked: " + geminiResp.PromptFeedback.BlockReason}
		}
		return "", malformed(ProviderGemini, "no candidates in response")
	}

	var sb strings.Builder
	for _, p := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", malformed(ProviderGemini, "empty text (finishReason=%s)", geminiResp.Candidates[0].FinishReason)
	}

	logging.API("[Gemini] Send: completed in %v prompt_tokens=%d output_tokens=%d",
		time.Since(startTime), geminiResp.UsageMetadata.PromptTokenCount, geminiResp.UsageMetadata.CandidatesTokenCount)
	return text, nil
}
