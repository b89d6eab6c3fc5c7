package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"chatbridge/internal/catalog"
	"chatbridge/internal/logger"
	"chatbridge/internal/models"
)

var ErrInvalidCompletion = errors.New("invalid response format from API")

type CompletionConfig struct {
	APIKey         string
	BaseURL        string
	SystemPrompt   string
	MaxTokens      int
	Temperature    float64
	ConcurrentReqs int
	Timeout        time.Duration
}

// CompletionService forwards chat history to the external OpenAI-compatible
// completion endpoint, one non-streaming request per turn.
type CompletionService struct {
	client       *openai.Client
	catalog      *catalog.Catalog
	systemPrompt string
	maxTokens    int
	temperature  float32
	rateChan     chan struct{} // Token bucket
	log          *logger.Logger
}

func NewCompletionService(cfg CompletionConfig, cat *catalog.Catalog) *CompletionService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: streamFlagTransport{base: http.DefaultTransport},
	}

	concurrent := cfg.ConcurrentReqs
	if concurrent <= 0 {
		concurrent = 1
	}
	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}

	return &CompletionService{
		client:       openai.NewClientWithConfig(clientCfg),
		catalog:      cat,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  float32(cfg.Temperature),
		rateChan:     rateChan,
		log:          logger.Get("completion"),
	}
}

// streamFlagTransport writes "stream": false into JSON request bodies that
// leave it out. The client drops the field when it is false.
type streamFlagTransport struct {
	base http.RoundTripper
}

func (t streamFlagTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil || req.Method != http.MethodPost {
		return t.base.RoundTrip(req)
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) == nil {
		if _, ok := fields["stream"]; !ok {
			fields["stream"] = json.RawMessage("false")
			if patched, err := json.Marshal(fields); err == nil {
				body = patched
			}
		}
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return t.base.RoundTrip(out)
}

// acquireRate blocks until a request slot is available
func (s *CompletionService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CompletionService) releaseRate() {
	s.rateChan <- struct{}{}
}

// BuildMessages prepends the system prompt and keeps only user and assistant
// turns. A message's parts are joined with single spaces.
func BuildMessages(systemPrompt string, history []models.IncomingMessage) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, m := range history {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: models.JoinParts(m.ContentParts()),
		})
	}
	return msgs
}

// Complete sends one completion request and returns the first choice's text.
func (s *CompletionService) Complete(ctx context.Context, selectedModel string, history []models.IncomingMessage) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	req := openai.ChatCompletionRequest{
		Model:       s.catalog.ActualModelID(selectedModel),
		Messages:    BuildMessages(s.systemPrompt, history),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Stream:      false,
	}
	s.log.Data(slog.LevelDebug, "Sending to API", req)

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", describeAPIError(err)
	}
	s.log.Data(slog.LevelDebug, "API response", resp)

	if len(resp.Choices) == 0 {
		return "", ErrInvalidCompletion
	}
	if msg := resp.Choices[0].Message; msg.Role == "" && msg.Content == "" {
		return "", ErrInvalidCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Reply never fails: when the upstream call errors, the apology text becomes
// the assistant's message so the turn is still recorded.
func (s *CompletionService) Reply(ctx context.Context, selectedModel string, history []models.IncomingMessage) string {
	content, err := s.Complete(ctx, selectedModel, history)
	if err != nil {
		s.log.Error("Error calling external API", "model", selectedModel, "error", err)
		return ApologyText(err)
	}
	return content
}

func ApologyText(err error) string {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("Sorry, something went wrong while contacting the AI service. Please try again later. (Error: %s)", msg)
}

func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("API request failed with status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return fmt.Errorf("API request failed with status %d: %s", reqErr.HTTPStatusCode, body)
	}
	return fmt.Errorf("API request failed: %w", err)
}
