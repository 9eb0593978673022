package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/patient-portal/internal/appointments"
)

// SendMessageAPI is the slice of the SQS client the publisher needs.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends appointment intents to the clinic's staff queue.
type SQSPublisher struct {
	client   SendMessageAPI
	queueURL string
	fifo     bool
}

// NewSQSPublisher creates a publisher for queueURL. FIFO queues get the
// patient ID as message group and the event ID as deduplication ID.
func NewSQSPublisher(client SendMessageAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Handle implements appointments.IntentSink.
func (p *SQSPublisher) Handle(ctx context.Context, intent appointments.Intent) error {
	env, err := envelopeFor(intent)
	if err != nil {
		return err
	}
	return p.Publish(ctx, env)
}

// Publish sends an already built envelope.
func (p *SQSPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(env.EventType)},
		},
	}
	if p.fifo {
		input.MessageGroupId = aws.String(env.Aggregate)
		input.MessageDeduplicationId = aws.String(env.EventID.String())
	}
	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}
