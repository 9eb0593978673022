package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/patient-portal/internal/observability/metrics"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

var gatewayTracer = otel.Tracer("portal.internal.conversation.gateway")

const defaultCompletionTimeout = 30 * time.Second

// GatewayConfig tunes completion calls.
type GatewayConfig struct {
	Provider    string
	Model       string
	Timeout     time.Duration
	MaxTokens   int32
	Temperature float32
}

// Completer answers an assembled context with a single text.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// Gateway makes exactly one provider call per turn, without retries.
type Gateway struct {
	client  LLMClient
	cfg     GatewayConfig
	logger  *logging.Logger
	metrics *metrics.PortalMetrics
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l *logging.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithGatewayMetrics records completion outcomes and latency.
func WithGatewayMetrics(m *metrics.PortalMetrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway builds a Gateway. A nil client means no credential was
// configured: every call then fails with ErrNotConfigured.
func NewGateway(client LLMClient, cfg GatewayConfig, opts ...GatewayOption) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCompletionTimeout
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	g := &Gateway{client: client, cfg: cfg, logger: logging.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured reports whether a provider client is present.
func (g *Gateway) Configured() bool {
	return g.client != nil
}

// Complete implements Completer.
func (g *Gateway) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if g.client == nil {
		g.metrics.ObserveCompletion(g.cfg.Provider, FailureKind(ErrNotConfigured), 0)
		return "", ErrNotConfigured
	}

	ctx, span := gatewayTracer.Start(ctx, "conversation.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal.completion.provider", g.cfg.Provider),
		attribute.Int("portal.completion.messages", len(messages)),
	)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Complete(callCtx, LLMRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	elapsed := time.Since(start)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = fmt.Errorf("%w: %s returned an empty answer", ErrMalformedResponse, g.cfg.Provider)
	}
	if err != nil {
		err = asTransport(g.cfg.Provider, err)
		span.RecordError(err)
		g.metrics.ObserveCompletion(g.cfg.Provider, FailureKind(err), elapsed)
		g.logger.Warn("completion failed",
			"provider", g.cfg.Provider,
			"kind", FailureKind(err),
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return "", err
	}

	span.SetAttributes(attribute.Int("portal.completion.output_tokens", int(resp.Usage.OutputTokens)))
	g.metrics.ObserveCompletion(g.cfg.Provider, "ok", elapsed)
	return strings.TrimSpace(resp.Text), nil
}
