package aws

import (
	"context"
	"errors"
	"log"
	"staylog/src/lib"
	"staylog/src/types"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type SQSConsumer struct {
	Name     string
	handler  types.Handler
	waitTime int32
	backoff  time.Duration
}

func NewSQSConsumer(queue string, handler types.Handler) *SQSConsumer {
	return &SQSConsumer{
		Name:     queue,
		handler:  handler,
		waitTime: 20,
		backoff:  5 * time.Second,
	}
}

// Listen long-polls the queue until ctx is done. A message is deleted only
// after its handler succeeds, otherwise SQS redelivers it.
func (s *SQSConsumer) Listen(ctx context.Context, client lib.SQSAPI) error {
	qname := s.Name
	qurl, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(qname),
	})
	if err != nil {
		log.Printf("Failed to retrieve queue URL for %s: %s\n", qname, err.Error())
		return err
	}
	log.Printf("%s: Listening for messages...", qname)
	go func() {
		for {
			output, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            qurl.QueueUrl,
				WaitTimeSeconds:     s.waitTime,
				MaxNumberOfMessages: 10,
			})
			if ctx.Err() != nil {
				log.Printf("%s: consumer stopped\n", qname)
				return
			}
			if err != nil {
				log.Printf("[SQS] Error receiving messages from %s: %s\n", qname, err.Error())
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.backoff):
				}
				continue
			}
			for _, m := range output.Messages {
				s.process(ctx, client, qurl.QueueUrl, m)
			}
		}
	}()
	return nil
}

func (s *SQSConsumer) process(ctx context.Context, client lib.SQSAPI, qurl *string, m sqstypes.Message) {
	body := strings.Clone(aws.ToString(m.Body))
	if err := s.handler(ctx, body); err != nil {
		if errors.Is(err, ErrPoisonMessage) {
			log.Printf("[SQS] %s: discarding message %s: %s\n", s.Name, aws.ToString(m.MessageId), err.Error())
			lib.SQSDeleteMessage(ctx, client, qurl, m)
			return
		}
		log.Printf("[SQS] %s: message %s left for redelivery: %s\n", s.Name, aws.ToString(m.MessageId), err.Error())
		return
	}
	lib.SQSDeleteMessage(ctx, client, qurl, m)
}

// ErrPoisonMessage marks a body that can never be processed; such messages
// are deleted instead of redelivered.
var ErrPoisonMessage = errors.New("unprocessable message")
