package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/wolfman30/spa-booking/internal/config"
)

func TestLoadAWSConfigUsesStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:          "ap-southeast-1",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "secret",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.Region != "ap-southeast-1" {
		t.Fatalf("unexpected region %q", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" {
		t.Fatalf("unexpected access key %q", creds.AccessKeyID)
	}
}

func TestNewSESClientHonorsEndpointOverride(t *testing.T) {
	client := NewSESClient(aws.Config{Region: "us-east-1"}, &appconfig.Config{AWSEndpointOverride: "http://localhost:4566"})
	if got := aws.ToString(client.Options().BaseEndpoint); got != "http://localhost:4566" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
