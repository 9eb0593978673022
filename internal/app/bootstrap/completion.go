package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/conversation"
	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// BuildCompletionClient selects the completion provider named in config.
// A nil client with a nil error means no provider is configured; the
// assistant then answers every turn with the fallback text.
func BuildCompletionClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (conversation.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.CompletionProvider)); provider {
	case "", "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			logger.Warn("no OpenAI API key configured; assistant will use fallback replies")
			return nil, nil
		}
		client, err := conversation.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: openai client: %w", err)
		}
		logger.Info("using OpenAI completion provider", "model", cfg.OpenAIModel)
		return client, nil

	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			logger.Warn("no Bedrock model configured; assistant will use fallback replies")
			return nil, nil
		}
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: aws config required for bedrock")
		}
		logger.Info("using Bedrock completion provider", "model", cfg.BedrockModelID)
		return conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil

	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("no Gemini API key configured; assistant will use fallback replies")
			return nil, nil
		}
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		logger.Info("using Gemini completion provider", "model", cfg.GeminiModel)
		return client, nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown completion provider %q", provider)
	}
}

// BuildGateway wraps the configured client in the completion gateway.
func BuildGateway(client conversation.LLMClient, cfg *appconfig.Config, m *metrics.PortalMetrics, logger *logging.Logger) *conversation.Gateway {
	model := cfg.OpenAIModel
	switch cfg.CompletionProvider {
	case "bedrock":
		model = cfg.BedrockModelID
	case "gemini":
		model = cfg.GeminiModel
	}
	return conversation.NewGateway(client, conversation.GatewayConfig{
		Provider:  cfg.CompletionProvider,
		Model:     model,
		Timeout:   cfg.CompletionTimeout,
		MaxTokens: int32(cfg.CompletionMaxTokens),
	}, conversation.WithGatewayLogger(logger), conversation.WithGatewayMetrics(m))
}
