package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/wolfman30/dental-agenda/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "eu-west-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566/",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	if awsCfg.Region != "eu-west-1" {
		t.Fatalf("expected region eu-west-1, got %s", awsCfg.Region)
	}
	if got := aws.ToString(awsCfg.BaseEndpoint); got != "http://localhost:4566" {
		t.Fatalf("expected LocalStack endpoint, got %q", got)
	}

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "test" {
		t.Errorf("expected static credentials, got %s", creds.AccessKeyID)
	}
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "eu-west-1"})
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	if awsCfg.BaseEndpoint != nil {
		t.Fatalf("expected default endpoints, got %q", aws.ToString(awsCfg.BaseEndpoint))
	}
}

func TestLoadAWSConfigRequiresRegion(t *testing.T) {
	if _, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: " "}); err == nil {
		t.Fatal("expected error without a region")
	}
}
