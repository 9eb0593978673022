package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiLLMClient implements LLMClient using Google's Gemini API.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient returns ErrNotConfigured when apiKey is blank.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiLLMClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete sends the context as a chat: system entries become the system
// instruction, all but the last remaining entry become history.
func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := c.modelID
	if req.Model != "" {
		modelID = req.Model
	}
	model := c.client.GenerativeModel(modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	system, history, last, err := geminiContext(req.Messages)
	if err != nil {
		return LLMResponse{}, err
	}
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return LLMResponse{}, classifyGeminiError(err)
	}

	if len(resp.Candidates) == 0 {
		return LLMResponse{}, fmt.Errorf("%w: gemini returned no candidates", ErrMalformedResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, fmt.Errorf("%w: gemini returned empty content", ErrMalformedResponse)
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	result := LLMResponse{
		Text:       strings.TrimSpace(responseText.String()),
		StopReason: candidate.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

// geminiContext splits a context into the system instruction, the chat
// history and the message to send. History always opens with a user turn.
func geminiContext(msgs []ChatMessage) (string, []*genai.Content, string, error) {
	var system []string
	var turns []ChatMessage
	for _, msg := range userFirst(msgs) {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Role == ChatRoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) == 0 {
		return "", nil, "", errors.New("conversation: gemini requires at least one message")
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, msg := range turns[:len(turns)-1] {
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return strings.Join(system, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return upstreamError("gemini", apiErr.Code, apiErr.Message)
	}
	return asTransport("gemini", err)
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
