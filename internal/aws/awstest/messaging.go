package awstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQS records every message sent.
type SQS struct {
	mu       sync.Mutex
	Err      error
	Messages []*sqs.SendMessageInput
}

func (s *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.Messages = append(s.Messages, params)
	id := fmt.Sprintf("msg-%d", len(s.Messages))
	return &sqs.SendMessageOutput{MessageId: &id}, nil
}

// Sent returns a snapshot of the sent messages.
func (s *SQS) Sent() []*sqs.SendMessageInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*sqs.SendMessageInput, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// CloudWatch records every datum put.
type CloudWatch struct {
	mu     sync.Mutex
	Err    error
	Inputs []*cloudwatch.PutMetricDataInput
}

func (c *CloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Inputs = append(c.Inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Datums flattens all recorded metric data.
func (c *CloudWatch) Datums() []cwtypes.MetricDatum {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []cwtypes.MetricDatum
	for _, in := range c.Inputs {
		out = append(out, in.MetricData...)
	}
	return out
}
