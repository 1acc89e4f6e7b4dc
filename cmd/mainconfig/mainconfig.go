// Package mainconfig builds the AWS SDK configuration shared by the API
// binary and local tooling.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/wolfman30/dental-agenda/internal/config"
)

// LoadAWSConfig resolves region and credentials. Static keys win over the
// default chain when both are set. AWS_ENDPOINT_OVERRIDE points every client
// at one endpoint (LocalStack or DynamoDB Local).
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		return aws.Config{}, fmt.Errorf("mainconfig: AWS_REGION is required")
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey); key != "" && secret != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}

	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.AWSEndpointOverride), "/"); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}
