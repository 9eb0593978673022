package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements LLMClient with the chat completions API.
type OpenAIClient struct {
	client chatClient
	model  string
}

// NewOpenAIClient returns ErrNotConfigured when apiKey is blank.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	return newOpenAIClient(openai.NewClientWithConfig(cfg), model), nil
}

func newOpenAIClient(client chatClient, model string) *OpenAIClient {
	if client == nil {
		panic("conversation: openai client cannot be nil")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{client: client, model: model}
}

// Complete implements LLMClient.
func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var role string
		switch msg.Role {
		case ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case ChatRoleUser:
			role = openai.ChatMessageRoleUser
		case ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			return LLMResponse{}, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   int(req.MaxTokens),
		Temperature: req.Temperature,
	})
	if err != nil {
		return LLMResponse{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, fmt.Errorf("%w: openai returned no choices", ErrMalformedResponse)
	}

	choice := resp.Choices[0]
	return LLMResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return upstreamError("openai", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return upstreamError("openai", reqErr.HTTPStatusCode, reqErr.Error())
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: openai: %w", ErrMalformedResponse, err)
	}
	return asTransport("openai", err)
}
