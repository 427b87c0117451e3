// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// SNSService is the subset of the SNS client the publisher needs.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// DecisionEvent is published once per reviewer decision.
type DecisionEvent struct {
	EventID   string    `json:"eventId"`
	Ticket    int       `json:"ticket"`
	Applicant string    `json:"applicant"`
	Nickname  string    `json:"nickname"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Category  string    `json:"reasonCategory,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

type DecisionPublisher struct {
	client   SNSService
	topicARN string
}

func NewDecisionPublisher(ctx context.Context, region, topicARN string) (*DecisionPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewDecisionPublisherWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewDecisionPublisherWithClient(client SNSService, topicARN string) *DecisionPublisher {
	return &DecisionPublisher{client: client, topicARN: topicARN}
}

// Publish sends the event to the topic and returns the event id. An empty
// EventID is filled with a fresh uuid.
func (p *DecisionPublisher) Publish(ctx context.Context, event DecisionEvent) (string, error) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal decision event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(fmt.Sprintf("Application #%d %s", event.Ticket, event.Action)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Action),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish decision event: %w", err)
	}
	return event.EventID, nil
}
