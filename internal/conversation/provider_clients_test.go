package conversation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type fakeConverse struct {
	in  *bedrockruntime.ConverseInput
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.in = in
	return f.out, f.err
}

func converseText(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(12),
			OutputTokens: aws.Int32(4),
			TotalTokens:  aws.Int32(16),
		},
	}
}

func bedrockStatusError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("throttled"),
		},
		RequestID: "req-1",
	}
}

func TestBedrockClientLiftsSystemAndAnswers(t *testing.T) {
	api := &fakeConverse{out: converseText("  We open at 8.  ")}
	client := NewBedrockLLMClient(api, "anthropic.claude")

	resp, err := client.Complete(context.Background(), LLMRequest{
		MaxTokens:   200,
		Temperature: -1,
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: "rules"},
			{Role: ChatRoleUser, Content: "hi"},
			{Role: ChatRoleAssistant, Content: "hello"},
			{Role: ChatRoleUser, Content: "   "},
			{Role: ChatRoleUser, Content: "hours?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "We open at 8.", resp.Text)
	assert.Equal(t, string(brtypes.StopReasonEndTurn), resp.StopReason)
	assert.EqualValues(t, 16, resp.Usage.TotalTokens)

	require.NotNil(t, api.in)
	assert.Equal(t, "anthropic.claude", aws.ToString(api.in.ModelId))
	require.Len(t, api.in.System, 1)
	require.Len(t, api.in.Messages, 3, "blank entries are skipped")
	assert.Equal(t, brtypes.ConversationRoleUser, api.in.Messages[0].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, api.in.Messages[1].Role)
	require.NotNil(t, api.in.InferenceConfig)
	assert.EqualValues(t, 200, aws.ToInt32(api.in.InferenceConfig.MaxTokens))
	assert.Nil(t, api.in.InferenceConfig.Temperature)
}

func TestBedrockClientRequestModelOverridesDefault(t *testing.T) {
	api := &fakeConverse{out: converseText("ok")}
	_, err := NewBedrockLLMClient(api, "default").Complete(context.Background(), LLMRequest{
		Model:    "override",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "override", aws.ToString(api.in.ModelId))
}

func TestBedrockClientFailures(t *testing.T) {
	tests := []struct {
		name  string
		model string
		api   *fakeConverse
		want  error
	}{
		{"missing model id", "", &fakeConverse{out: converseText("ok")}, ErrNotConfigured},
		{"throttled", "m", &fakeConverse{err: bedrockStatusError(http.StatusTooManyRequests)}, ErrUpstream},
		{"network", "m", &fakeConverse{err: errors.New("dial tcp: i/o timeout")}, ErrTransport},
		{"deadline", "m", &fakeConverse{err: context.DeadlineExceeded}, ErrTransport},
		{"blank answer", "m", &fakeConverse{out: converseText("   ")}, ErrMalformedResponse},
		{"no message output", "m", &fakeConverse{out: &bedrockruntime.ConverseOutput{}}, ErrMalformedResponse},
		{"nil output", "m", &fakeConverse{}, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBedrockLLMClient(tt.api, tt.model).Complete(context.Background(), LLMRequest{
				Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}},
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBedrockClientRejectsUnknownRole(t *testing.T) {
	api := &fakeConverse{out: converseText("ok")}
	_, err := NewBedrockLLMClient(api, "m").Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	require.Error(t, err)
	assert.Nil(t, api.in, "nothing is sent")
}

func TestBedrockSessionOpensWithUserTurn(t *testing.T) {
	api := &fakeConverse{out: converseText("We open at 8.")}
	gateway := NewGateway(NewBedrockLLMClient(api, "anthropic.claude"), GatewayConfig{})
	ctrl, _, session := newTestController(t, gateway)

	turn, err := ctrl.SendTurn(context.Background(), session.ID, "When do you open?")
	require.NoError(t, err)
	assert.False(t, turn.Fallback)
	assert.Equal(t, "We open at 8.", turn.Content)

	require.Len(t, api.in.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, api.in.Messages[0].Role)
	// Instructions, identity, then the greeting.
	require.Len(t, api.in.System, 3)
	greeting, ok := api.in.System[2].(*brtypes.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Contains(t, greeting.Value, "You already said this to the patient")
	assert.Contains(t, greeting.Value, session.History[0].Content)

	_, err = ctrl.SendTurn(context.Background(), session.ID, "And on Saturday?")
	require.NoError(t, err)
	require.Len(t, api.in.Messages, 3)
	assert.Equal(t, brtypes.ConversationRoleUser, api.in.Messages[0].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, api.in.Messages[1].Role)
	assert.Equal(t, brtypes.ConversationRoleUser, api.in.Messages[2].Role)
}

func TestUserFirstKeepsLaterAssistantTurns(t *testing.T) {
	in := []ChatMessage{
		{Role: ChatRoleSystem, Content: "rules"},
		{Role: ChatRoleAssistant, Content: "Hello, Maria!"},
		{Role: ChatRoleUser, Content: "hi"},
		{Role: ChatRoleAssistant, Content: "How can I help?"},
	}
	out := userFirst(in)
	require.Len(t, out, 4)
	assert.Equal(t, ChatRoleSystem, out[1].Role)
	assert.Equal(t, ChatRoleUser, out[2].Role)
	assert.Equal(t, in[3], out[3])
	assert.Equal(t, ChatRoleAssistant, in[1].Role, "input is not modified")
}

func TestGeminiContextOpensWithUserTurn(t *testing.T) {
	system, history, last, err := geminiContext([]ChatMessage{
		{Role: ChatRoleSystem, Content: "rules"},
		{Role: ChatRoleAssistant, Content: "Hello, Maria!"},
		{Role: ChatRoleUser, Content: "hi"},
		{Role: ChatRoleAssistant, Content: "How can I help?"},
		{Role: ChatRoleUser, Content: "hours?"},
	})
	require.NoError(t, err)
	assert.Contains(t, system, "rules")
	assert.Contains(t, system, "Hello, Maria!")
	assert.Equal(t, "hours?", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, []genai.Part{genai.Text("hi")}, history[0].Parts)
	assert.Equal(t, "model", history[1].Role)
}

func TestGeminiContextRequiresMessage(t *testing.T) {
	_, _, _, err := geminiContext([]ChatMessage{
		{Role: ChatRoleSystem, Content: "rules"},
		{Role: ChatRoleUser, Content: "  "},
	})
	assert.Error(t, err)
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api error", &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "overloaded"}, ErrUpstream},
		{"wrapped api error", errors.Join(errors.New("send"), &googleapi.Error{Code: 400}), ErrUpstream},
		{"network", errors.New("connection reset"), ErrTransport},
		{"deadline", context.DeadlineExceeded, ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyGeminiError(tt.err), tt.want)
		})
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiLLMClient(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
