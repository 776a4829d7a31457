package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/correspondence-backend/internal/platform/httpx"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
)

type Config struct {
	BaseURL             string
	APIKey              string
	ChatCompletionsPath string
	// Timeout bounds a single round-trip. Zero means 90s.
	Timeout time.Duration
}

// HTTPClient talks to an OpenAI-compatible /v1/chat/completions endpoint.
type HTTPClient struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	path       string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

func New(cfg Config, log *logger.Logger) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("completion: base_url required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	path := strings.TrimSpace(cfg.ChatCompletionsPath)
	if path == "" {
		path = "/v1/chat/completions"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPClient{
		log:        log.With("service", "CompletionClient"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		path:       path,
		timeout:    timeout,
		httpClient: &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg Config, log *logger.Logger, httpClient *http.Client) (*HTTPClient, error) {
	c, err := New(cfg, log)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

// ---------------- wire schema ----------------

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireTool struct {
	Type     string          `json:"type"`
	Function wireFunctionDef `json:"function"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// ---------------- Complete ----------------

func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Result, error) {
	if len(req.Messages) == 0 {
		return nil, &ProviderError{Kind: KindProtocol, Message: "empty conversation"}
	}

	ctx, span := otel.Tracer("completion").Start(ctx, "completion.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Int("llm.tools", len(req.Tools)),
	)

	start := time.Now()
	res, err := c.complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		c.log.Warn("completion failed",
			"model", req.Model,
			"kind", string(KindOf(err)),
			"status", httpx.StatusCode(err),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", res.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", res.Usage.CompletionTokens),
		attribute.String("llm.finish_reason", res.FinishReason),
	)
	c.log.Debug("completion done",
		"model", res.Model,
		"finish_reason", res.FinishReason,
		"tool_calls", len(res.Message.ToolCalls),
		"prompt_tokens", res.Usage.PromptTokens,
		"completion_tokens", res.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *HTTPClient) complete(ctx context.Context, req Request) (*Result, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildRequest(req)); err != nil {
		return nil, &ProviderError{Kind: KindProtocol, Message: "encode request", Err: err}
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+c.path, &buf)
	if err != nil {
		return nil, &ProviderError{Kind: KindTransport, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &ProviderError{Kind: KindTransport, StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := &ProviderError{
			Kind:       KindUpstream,
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(raw),
		}
		if httpx.IsRateLimitStatus(resp.StatusCode) {
			pe.Kind = KindRateLimited
			pe.RetryAfter = httpx.RetryAfterDuration(resp, 0, time.Minute)
		}
		return nil, pe
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ProviderError{Kind: KindProtocol, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &ProviderError{Kind: KindProtocol, StatusCode: resp.StatusCode, Message: "response has no choices"}
	}

	choice := out.Choices[0]
	if choice.Message.Role != "" && choice.Message.Role != string(RoleAssistant) {
		return nil, &ProviderError{Kind: KindProtocol, StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected role %q", choice.Message.Role)}
	}
	res := &Result{
		Message:      fromWireMessage(choice.Message),
		FinishReason: choice.FinishReason,
		Model:        out.Model,
	}
	if res.Model == "" {
		res.Model = req.Model
	}
	if out.Usage != nil {
		res.Usage = *out.Usage
	}
	return res, nil
}

func buildRequest(req Request) chatCompletionRequest {
	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, toWireMessage(m))
	}
	if len(req.Tools) == 0 {
		return body
	}
	body.Tools = make([]wireTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, wireTool{
			Type: "function",
			Function: wireFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	body.ToolChoice = req.ToolChoice
	if body.ToolChoice == "" {
		body.ToolChoice = ToolChoiceAuto
	}
	return body
}

func toWireMessage(m Message) wireMessage {
	wm := wireMessage{Role: string(m.Role), ToolCallID: m.ToolCallID}
	// An assistant turn that only requests tools has no content of its own.
	if !(m.Role == RoleAssistant && len(m.ToolCalls) > 0 && m.Content == "") {
		content := m.Content
		wm.Content = &content
	}
	for _, tc := range m.ToolCalls {
		wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: wireFunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return wm
}

func fromWireMessage(wm wireMessage) Message {
	m := Message{Role: RoleAssistant, ToolCallID: wm.ToolCallID}
	if wm.Content != nil {
		m.Content = *wm.Content
	}
	for _, tc := range wm.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return m
}

func upstreamMessage(raw []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && strings.TrimSpace(env.Error.Message) != "" {
		return env.Error.Message
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
