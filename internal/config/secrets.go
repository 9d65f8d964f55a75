package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretFetcher reads a secret string by id.
type SecretFetcher interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsManager builds a Secrets Manager client from the default AWS
// credential chain.
func NewSecretsManager(ctx context.Context, region string) (*secretsmanager.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// UnsubscribeSecret resolves the unsubscribe signing secret. An empty result
// with a nil error means no secret is configured, and unsubscribe links will
// not be issued.
func UnsubscribeSecret(ctx context.Context, c UnsubscribeConfig, sm SecretFetcher) (string, error) {
	if c.Secret != "" {
		return c.Secret, nil
	}
	if c.SecretID == "" {
		return "", nil
	}
	if sm == nil {
		return "", fmt.Errorf("unsubscribe.secret_id %q set without a secrets manager client", c.SecretID)
	}
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(c.SecretID)})
	if err != nil {
		return "", fmt.Errorf("fetch secret %s: %w", c.SecretID, err)
	}
	return aws.ToString(out.SecretString), nil
}
