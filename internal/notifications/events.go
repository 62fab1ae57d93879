package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types published after a successful submission.
const (
	EventSignatureSigned  = "signature.signed"
	EventAttendanceSigned = "attendance.signed"
	EventProcessStep      = "process.step_signed"
	EventProcessCompleted = "process.completed"
)

// Event is the JSON body delivered to subscribers.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	OrganizationID uuid.UUID `json:"organization_id"`
	RequestID      uuid.UUID `json:"request_id"`
	SignerEmail    string    `json:"signer_email,omitempty"`
	IntegrityHash  string    `json:"integrity_hash"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// SNSAPI is the subset of the SNS client used for publishing.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	client   SNSAPI
	topicARN string
	logger   *zap.Logger
}

func NewSNSPublisher(client SNSAPI, topicARN string, logger *zap.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, logger: logger}
}

func (p *SNSPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}
	p.logger.Debug("Event published", zap.String("type", ev.Type), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// NopPublisher drops events when no topic is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
