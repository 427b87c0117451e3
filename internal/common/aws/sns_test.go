package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	inputs      []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

func TestDecisionPublisher_Publish(t *testing.T) {
	mock := &MockSNSService{}
	publisher := NewDecisionPublisherWithClient(mock, "arn:aws:sns:eu-central-1:123:decisions")

	id, err := publisher.Publish(context.Background(), DecisionEvent{
		Ticket:    7,
		Applicant: "u-42",
		Nickname:  "playerx",
		Action:    "rejected",
		Reason:    "weak",
		DecidedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, mock.inputs, 1)

	in := mock.inputs[0]
	assert.Equal(t, "arn:aws:sns:eu-central-1:123:decisions", *in.TopicArn)
	assert.Equal(t, "rejected", *in.MessageAttributes["action"].StringValue)

	var event DecisionEvent
	require.NoError(t, json.Unmarshal([]byte(*in.Message), &event))
	assert.Equal(t, id, event.EventID)
	assert.Equal(t, 7, event.Ticket)
	assert.Equal(t, "weak", event.Reason)
}

func TestDecisionPublisher_KeepsExplicitEventID(t *testing.T) {
	publisher := NewDecisionPublisherWithClient(&MockSNSService{}, "arn")

	id, err := publisher.Publish(context.Background(), DecisionEvent{EventID: "fixed", Action: "accepted"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
}

func TestDecisionPublisher_PublishError(t *testing.T) {
	mock := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	publisher := NewDecisionPublisherWithClient(mock, "arn")

	_, err := publisher.Publish(context.Background(), DecisionEvent{Action: "accepted"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
