//go:build adapters_sqs
// +build adapters_sqs

package sqspublisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/KamdynS/toolstream/toolcall"
)

// SendAPI is the subset of the SQS client used by Publisher.
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends tool call events to an SQS queue as JSON messages.
type Publisher struct {
	client SendAPI
	cfg    Config
	mu     sync.Mutex
	seqs   map[string]int64 // toolCallID -> last published seq
}

// New constructs a Publisher using the default AWS config chain.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("QueueURL is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awscfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewFromClient(sqs.NewFromConfig(awscfg), cfg), nil
}

// NewFromClient constructs the Publisher from an existing SQS client.
func NewFromClient(client SendAPI, cfg Config) *Publisher {
	return &Publisher{
		client: client,
		cfg:    cfg,
		seqs:   make(map[string]int64),
	}
}

// Publish sends one domain event. End markers are ignored.
func (p *Publisher) Publish(ctx context.Context, ev toolcall.Event) error {
	if ev.Kind() == toolcall.KindEnd {
		return nil
	}
	body, err := toolcall.MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	callID := toolcall.CallID(ev)

	p.mu.Lock()
	p.seqs[callID]++
	seq := p.seqs[callID]
	if ev.Kind() == toolcall.KindResult {
		delete(p.seqs, callID)
	}
	p.mu.Unlock()

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.cfg.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"ToolCallID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(callID),
			},
			"EventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(ev.Kind())),
			},
			"Seq": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(seq, 10)),
			},
		},
	}
	if p.cfg.FIFO {
		groupID := p.cfg.MessageGroupID
		if groupID == "" {
			groupID = callID
		}
		input.MessageGroupId = aws.String(groupID)
		input.MessageDeduplicationId = aws.String(callID + ":" + strconv.FormatInt(seq, 10))
	} else if p.cfg.DelaySeconds > 0 {
		// per-message delay is not supported on FIFO queues
		input.DelaySeconds = p.cfg.DelaySeconds
	}
	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs SendMessage: %w", err)
	}
	return nil
}

// Forget drops the sequence counter of a tool call. Calls that end with a
// Result are forgotten automatically.
func (p *Publisher) Forget(toolCallID string) {
	p.mu.Lock()
	delete(p.seqs, toolCallID)
	p.mu.Unlock()
}

// Forward drains src, publishing every event, and returns how many were sent.
// The call's sequence counter is dropped once src is exhausted.
func (p *Publisher) Forward(ctx context.Context, src toolcall.Source) (int, error) {
	n := 0
	var callID string
	for {
		ev, err := src.Recv(ctx)
		if errors.Is(err, io.EOF) {
			if callID != "" {
				p.Forget(callID)
			}
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if id := toolcall.CallID(ev); id != "" {
			callID = id
		}
		if err := p.Publish(ctx, ev); err != nil {
			return n, err
		}
		n++
	}
}
