package common

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"staylog/src/events"
	"staylog/src/lib"
	awslib "staylog/src/lib/aws"
	"staylog/src/types"

	"github.com/go-playground/validator/v10"
)

const (
	QUEUE_SIGNUP_COMPLETED = "SignupCompleted"
	QUEUE_COMMENT_CREATED  = "CommentCreated"
)

// decodeEvent fills e from payload and validates it. Bodies that fail either
// step are poison: retrying them cannot succeed.
func decodeEvent(v *validator.Validate, payload string, e any) error {
	if err := json.Unmarshal([]byte(payload), e); err != nil {
		return fmt.Errorf("%w: %s", awslib.ErrPoisonMessage, err.Error())
	}
	if err := v.Struct(e); err != nil {
		return fmt.Errorf("%w: %s", awslib.ErrPoisonMessage, err.Error())
	}
	return nil
}

func SignupCompletedHandler(pub events.Publisher, v *validator.Validate) types.Handler {
	return func(ctx context.Context, payload string) error {
		var e events.SignupCompleted
		if err := decodeEvent(v, payload, &e); err != nil {
			return err
		}
		log.Printf("[%s] user %d\n", QUEUE_SIGNUP_COMPLETED, e.UserID)
		pub.Publish(ctx, e)
		return nil
	}
}

func CommentCreatedHandler(pub events.Publisher, v *validator.Validate) types.Handler {
	return func(ctx context.Context, payload string) error {
		var e events.CommentCreated
		if err := decodeEvent(v, payload, &e); err != nil {
			return err
		}
		log.Printf("[%s] comment %d on board %d\n", QUEUE_COMMENT_CREATED, e.CommentID, e.BoardID)
		pub.Publish(ctx, e)
		return nil
	}
}

// SQSConsumers starts one long-poll consumer per upstream queue. Queues that
// cannot be resolved are logged and skipped.
func SQSConsumers(ctx context.Context, client lib.SQSAPI, pub events.Publisher) int {
	v := validator.New(validator.WithRequiredStructEnabled())
	consumers := []*awslib.SQSConsumer{
		awslib.NewSQSConsumer(QUEUE_SIGNUP_COMPLETED, SignupCompletedHandler(pub, v)),
		awslib.NewSQSConsumer(QUEUE_COMMENT_CREATED, CommentCreatedHandler(pub, v)),
	}
	started := 0
	for _, c := range consumers {
		if err := c.Listen(ctx, client); err != nil {
			continue
		}
		started++
	}
	return started
}
