package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"clinic-booking-server/internal/scheduling"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends each event as a JSON message to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// NewSQSPublisherFromEnv builds the client from the default AWS credential chain.
func NewSQSPublisherFromEnv(ctx context.Context, region, queueURL string) (*SQSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("notify: failed to load AWS config: %w", err)
	}
	return NewSQSPublisher(sqs.NewFromConfig(cfg), queueURL), nil
}

func (p *SQSPublisher) Name() string { return "sqs" }

func (p *SQSPublisher) Publish(ctx context.Context, evt scheduling.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: failed to encode event: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {DataType: aws.String("String"), StringValue: aws.String(string(evt.Action))},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}
