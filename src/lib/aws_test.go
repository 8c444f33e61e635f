package lib

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	value *string
	err   error
	asked string
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(params.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestAWSGetSecretStringPlain(t *testing.T) {
	client := &fakeSecrets{value: aws.String("whsec_plain")}
	value, err := AWSGetSecretString(context.Background(), client, "staylog/toss", "TOSS_WEBHOOK_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "whsec_plain", value)
	assert.Equal(t, "staylog/toss", client.asked)
}

func TestAWSGetSecretStringJSON(t *testing.T) {
	client := &fakeSecrets{value: aws.String(`{"TOSS_WEBHOOK_SECRET":"whsec_json","OTHER":"x"}`)}
	value, err := AWSGetSecretString(context.Background(), client, "staylog/toss", "TOSS_WEBHOOK_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "whsec_json", value)

	_, err = AWSGetSecretString(context.Background(), client, "staylog/toss", "MISSING")
	assert.Error(t, err)
}

func TestAWSGetSecretStringErrors(t *testing.T) {
	_, err := AWSGetSecretString(context.Background(), &fakeSecrets{err: errors.New("denied")}, "id", "k")
	assert.ErrorContains(t, err, "denied")

	_, err = AWSGetSecretString(context.Background(), &fakeSecrets{}, "id", "k")
	assert.Error(t, err)
}
