package common

import (
	"context"
	"errors"
	"sync"
	"testing"

	"staylog/src/events"
	awslib "staylog/src/lib/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, e)
}

func TestSignupCompletedHandler(t *testing.T) {
	pub := &recordingPublisher{}
	handle := SignupCompletedHandler(pub, validator.New())

	require.NoError(t, handle(context.Background(), `{"userId":42,"extra":"ignored"}`))
	require.Len(t, pub.published, 1)
	assert.Equal(t, events.SignupCompleted{UserID: 42}, pub.published[0])
}

func TestSignupCompletedHandlerRejectsBadBodies(t *testing.T) {
	pub := &recordingPublisher{}
	handle := SignupCompletedHandler(pub, validator.New())

	err := handle(context.Background(), `not json`)
	assert.True(t, errors.Is(err, awslib.ErrPoisonMessage))

	err = handle(context.Background(), `{"userId":0}`)
	assert.True(t, errors.Is(err, awslib.ErrPoisonMessage))
	assert.Empty(t, pub.published)
}

func TestCommentCreatedHandler(t *testing.T) {
	pub := &recordingPublisher{}
	handle := CommentCreatedHandler(pub, validator.New())

	body := `{"commentId":7,"boardId":3,"recipientId":11,"writerNickname":"mina","writerImageUrl":"https://cdn.staylog.dev/u/5.png","content":"Lovely stay!"}`
	require.NoError(t, handle(context.Background(), body))
	require.Len(t, pub.published, 1)
	e := pub.published[0].(events.CommentCreated)
	assert.Equal(t, uint(11), e.RecipientID)
	assert.Equal(t, "mina", e.WriterNickname)

	err := handle(context.Background(), `{"commentId":7,"boardId":3,"recipientId":11,"writerNickname":"mina","writerImageUrl":"not a url","content":"x"}`)
	assert.True(t, errors.Is(err, awslib.ErrPoisonMessage))
}

type queueResolver struct {
	known map[string]bool
}

func (q *queueResolver) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	name := aws.ToString(params.QueueName)
	if !q.known[name] {
		return nil, errors.New("no such queue")
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/" + name)}, nil
}

func (q *queueResolver) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *queueResolver) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSConsumersSkipsUnknownQueues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &queueResolver{known: map[string]bool{QUEUE_SIGNUP_COMPLETED: true}}
	assert.Equal(t, 1, SQSConsumers(ctx, client, &recordingPublisher{}))
}
