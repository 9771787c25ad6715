package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"store-assistant/internal/domain"
	"store-assistant/internal/sanitize"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	historyWindow  = 10
	temperature    = 0.7
	maxTokens      = 1000
)

const (
	KindTransport = "transport"
	KindUpstream  = "upstream"
	KindMalformed = "malformed"
)

// ErrMissingCredential is returned when a request carries no API key.
var ErrMissingCredential = errors.New("openai: api key is not configured")

// Error describes a failed completion call. Message carries the provider's
// error text when there is one and is meant for logs only.
type Error struct {
	Kind       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("openai: %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai: %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) FailureKind() string { return e.Kind }

func (e *Error) HTTPStatusCode() int { return e.StatusCode }

// Client sends chat completions through go-openai. Underlying SDK clients
// are cached per API key so a rotated key takes effect immediately.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*goopenai.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if u := strings.TrimSpace(baseURL); u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clients:    map[string]*goopenai.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) sdk(apiKey string) *goopenai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[apiKey]; ok {
		return cl
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	cl := goopenai.NewClientWithConfig(cfg)
	c.clients[apiKey] = cl
	return cl
}

// Complete sends the system message plus the recent non-system history and
// returns the raw text of the first choice.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return "", ErrMissingCredential
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = domain.DefaultModel
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    buildMessages(req.System, req.History),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.sdk(apiKey).CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, StatusCode: http.StatusOK, Message: "no choices in response"}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &Error{Kind: KindMalformed, StatusCode: http.StatusOK, Message: "empty message content"}
	}
	return content, nil
}

func buildMessages(system string, history []domain.Message) []goopenai.ChatCompletionMessage {
	recent := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			continue
		}
		recent = append(recent, m)
	}
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	msgs := make([]goopenai.ChatCompletionMessage, 0, len(recent)+1)
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	for _, m := range recent {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: sanitize.Text(m.Content),
		})
	}
	return msgs
}

func classify(err error) *Error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindUpstream, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Kind: KindUpstream, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Kind: KindMalformed, StatusCode: http.StatusOK, Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}
