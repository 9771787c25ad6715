package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"store-assistant/internal/domain"
)

type capturedRequest struct {
	Path           string
	Auth           string
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

func newTestServer(t *testing.T, status int, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, captured))
			captured.Path = r.URL.Path
			captured.Auth = r.Header.Get("Authorization")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func request(history ...domain.Message) domain.CompletionRequest {
	return domain.CompletionRequest{APIKey: "sk-test", Model: "gpt-4o-mini", System: "be helpful", History: history}
}

func TestComplete_HappyPath(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK, completionBody(`{"assistant_reply":"hi"}`), &got)
	c := NewClient(WithBaseURL(srv.URL + "/v1"))

	req := request(
		domain.Message{Role: domain.RoleSystem, Content: "ignored"},
		domain.Message{Role: domain.RoleUser, Content: "<b>hello</b>"},
	)
	req.JSONMode = true
	out, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, `{"assistant_reply":"hi"}`, out)

	require.Equal(t, "/v1/chat/completions", got.Path)
	require.Equal(t, "Bearer sk-test", got.Auth)
	require.Equal(t, "gpt-4o-mini", got.Model)
	require.InDelta(t, 0.7, got.Temperature, 0.0001)
	require.Equal(t, 1000, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	require.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Equal(t, "be helpful", got.Messages[0].Content)
	require.Equal(t, "hello", got.Messages[1].Content)
}

func TestComplete_NoResponseFormatWithoutJSONMode(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK, completionBody("plain"), &got)
	c := NewClient(WithBaseURL(srv.URL + "/v1"))

	_, err := c.Complete(context.Background(), request(domain.Message{Role: domain.RoleUser, Content: "hi"}))
	require.NoError(t, err)
	require.Nil(t, got.ResponseFormat)
}

func TestBuildMessages_WindowsNonSystemHistory(t *testing.T) {
	var history []domain.Message
	for i := 0; i < 14; i++ {
		history = append(history, domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf("m%d", i)})
		if i%4 == 0 {
			history = append(history, domain.Message{Role: domain.RoleSystem, Content: "sys"})
		}
	}
	msgs := buildMessages("system prompt", history)
	require.Len(t, msgs, 11)
	require.Equal(t, "system prompt", msgs[0].Content)
	require.Equal(t, "m4", msgs[1].Content)
	require.Equal(t, "m13", msgs[10].Content)
	for _, m := range msgs[1:] {
		require.NotEqual(t, "sys", m.Content)
	}
}

func TestComplete_MissingCredential(t *testing.T) {
	c := NewClient()
	_, err := c.Complete(context.Background(), domain.CompletionRequest{APIKey: "  "})
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestComplete_UpstreamAPIError(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, nil)
	c := NewClient(WithBaseURL(srv.URL + "/v1"))

	_, err := c.Complete(context.Background(), request(domain.Message{Role: domain.RoleUser, Content: "hi"}))
	var oe *Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, KindUpstream, oe.FailureKind())
	require.Equal(t, http.StatusTooManyRequests, oe.HTTPStatusCode())
	require.Equal(t, "Rate limit reached", oe.Message)
}

func TestComplete_UpstreamNonJSONError(t *testing.T) {
	srv := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`, nil)
	c := NewClient(WithBaseURL(srv.URL + "/v1"))

	_, err := c.Complete(context.Background(), request(domain.Message{Role: domain.RoleUser, Content: "hi"}))
	var oe *Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, KindUpstream, oe.Kind)
	require.Equal(t, http.StatusBadGateway, oe.StatusCode)
}

func TestComplete_MalformedResponses(t *testing.T) {
	cases := map[string]string{
		"no choices":    `{"id":"x","object":"chat.completion","choices":[]}`,
		"empty content": completionBody("   "),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, body, nil)
			c := NewClient(WithBaseURL(srv.URL + "/v1"))
			_, err := c.Complete(context.Background(), request(domain.Message{Role: domain.RoleUser, Content: "hi"}))
			var oe *Error
			require.ErrorAs(t, err, &oe)
			require.Equal(t, KindMalformed, oe.Kind)
		})
	}
}

func TestComplete_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(url + "/v1"))
	_, err := c.Complete(context.Background(), request(domain.Message{Role: domain.RoleUser, Content: "hi"}))
	var oe *Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, KindTransport, oe.Kind)
	require.Zero(t, oe.StatusCode)
}

func TestComplete_ContextCancelled(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, completionBody("late"), nil)
	c := NewClient(WithBaseURL(srv.URL+"/v1"), WithHTTPClient(&http.Client{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, request(domain.Message{Role: domain.RoleUser, Content: "hi"}))
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "canceled"))
}

func TestSDKClientCachedPerKey(t *testing.T) {
	c := NewClient()
	a1 := c.sdk("key-a")
	a2 := c.sdk("key-a")
	b := c.sdk("key-b")
	require.Same(t, a1, a2)
	require.NotSame(t, a1, b)
}

func TestError_Message(t *testing.T) {
	e := &Error{Kind: KindUpstream, StatusCode: 500, Message: "boom"}
	require.Equal(t, "openai: upstream error (status 500): boom", e.Error())
	e = &Error{Kind: KindTransport, Message: "dial tcp"}
	require.Equal(t, "openai: transport error: dial tcp", e.Error())
}
