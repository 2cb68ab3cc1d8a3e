// Package llmclient talks to a chat-completions style LLM endpoint and
// turns a telemetry sample plus a set of label policies into a single
// free-text advisory response for the parser package to structure.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.x.ai/v1"

// RequestError is returned for any transport-level failure: the
// connection could not be established, or the remote endpoint answered
// with a non-2xx status. StatusCode is 0 for connection-level failures.
// The body is truncated to keep logs bounded.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("llm request failed: %s", e.Body)
	}
	return fmt.Sprintf("llm request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client is a minimal chat-completions client. It is provider-neutral:
// any OpenAI-compatible /chat/completions endpoint works, selected by
// BaseURL and Model.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a Client at construction.
type Option func(*Client)

// WithBaseURL overrides the default endpoint, for pointing at a
// self-hosted or alternate-provider gateway.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithModel overrides the model identifier sent on every request.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient overrides the http.Client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client. apiKey must be non-empty; callers are expected
// to resolve it (config value or environment fallback) before calling.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   "grok-beta",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

const systemPrompt = "You are an expert OpenTelemetry observability engineer specializing in telemetry optimization and filtering. You analyze telemetry data and provide actionable recommendations for filtering out noise and enforcing label policies."

const promptTemplate = `
Analyze this OpenTelemetry telemetry sample and provide specific recommendations:

TELEMETRY SAMPLE:
%s

LABEL POLICIES TO ENFORCE:
%s

Please provide recommendations in the following format:

1. SIGNALS TO DROP:
   - Identify low-value metrics, noisy logs, or unnecessary traces
   - Provide specific filter conditions

2. LABEL POLICY VIOLATIONS:
   - Identify data that doesn't comply with label policies
   - Suggest corrections or drops for non-compliant attributes

3. OTEL FILTER RULES:
   - Generate YAML configuration snippets for OpenTelemetry filter processor
   - Use proper OTTL (OpenTelemetry Transformation Language) syntax
   - Include both trace and metric filter rules

4. RATIONALE:
   - Explain why each recommendation improves observability
   - Estimate potential data volume reduction

Focus on actionable, production-ready recommendations that can be implemented immediately.
`

func buildPrompt(sampleJSON string, policies []string) string {
	return fmt.Sprintf(promptTemplate, sampleJSON, formatPolicies(policies))
}

func formatPolicies(policies []string) string {
	if len(policies) == 0 {
		return "No specific policies provided - use best practices"
	}
	result := ""
	for i, p := range policies {
		result += fmt.Sprintf("   %d. %s\n", i+1, p)
	}
	return result
}

// Recommend sends a telemetry sample and the active label policies to the
// LLM and returns the raw assistant reply text for the parser package.
func (c *Client) Recommend(ctx context.Context, sampleJSON string, policies []string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(sampleJSON, policies)},
		},
		Stream: false,
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ValidateConnection makes a minimal request to confirm the API key and
// endpoint are reachable and authorized.
func (c *Client) ValidateConnection(ctx context.Context) error {
	req := chatRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: "Hello"}},
		Stream:   false,
	}
	_, err := c.send(ctx, req)
	return err
}

func (c *Client) send(ctx context.Context, request chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("building llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding llm response: %w", err)
	}
	return &parsed, nil
}
