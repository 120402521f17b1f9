package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/spiral/spiral"
)

// defaultRegion is used when no region option is set.
const defaultRegion = "us-east-1"

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region. Defaults to us-east-1.
	Region string

	// Endpoint is an optional custom endpoint URL for S3-compatible services
	// (MinIO, LocalStack, R2). Example: "http://localhost:4566".
	Endpoint string

	// UsePathStyle enables path-style addressing instead of virtual-hosted style.
	// Required for LocalStack and MinIO with default config.
	UsePathStyle bool

	// Credentials are the AWS credentials to use.
	// If nil, CredentialsFile or the default credential chain is used.
	Credentials aws.CredentialsProvider

	// CredentialsFile is an optional shared credentials file.
	CredentialsFile string

	// CABundle is an optional PEM bundle trusted for TLS connections.
	CABundle string

	// AppID is sent in the User-Agent header.
	AppID string
}

// ClientConfigFromOptions builds a ClientConfig from validated options.
// File-valued options have already been checked for readability.
func ClientConfigFromOptions(opts *spiral.Options) ClientConfig {
	return ClientConfig{
		Region:          opts.Value(spiral.OptionRegion),
		Endpoint:        opts.Value(spiral.OptionEndpoint),
		UsePathStyle:    opts.Bool(spiral.OptionPathStyle),
		CredentialsFile: opts.Value(spiral.OptionCredentialsFile),
		CABundle:        opts.Value(spiral.OptionCABundle),
		AppID:           opts.Value(spiral.OptionAppID),
	}
}

// loadOptions returns the SDK load options for cfg.
func (cfg ClientConfig) loadOptions() ([]func(*config.LoadOptions) error, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	switch {
	case cfg.Credentials != nil:
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	case cfg.CredentialsFile != "":
		opts = append(opts, config.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
	}

	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("s3: reading ca bundle: %w", err)
		}
		if len(pem) == 0 {
			return nil, errors.New("s3: ca bundle is empty")
		}
		opts = append(opts, config.WithCustomCABundle(bytes.NewReader(pem)))
	}

	if cfg.AppID != "" {
		opts = append(opts, config.WithAppID(cfg.AppID))
	}
	return opts, nil
}

// serviceOptions returns the S3 service options for cfg.
func (cfg ClientConfig) serviceOptions() []func(*s3.Options) {
	var s3Opts []func(*s3.Options)

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3Opts
}

// NewClient creates a new S3 client with the given configuration.
//
// For AWS S3:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{
//	    Region: "us-east-1",
//	})
//
// For LocalStack:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{
//	    Region:       "us-east-1",
//	    Endpoint:     "http://localhost:4566",
//	    UsePathStyle: true,
//	    Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
//	})
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	opts, err := cfg.loadOptions()
	if err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, cfg.serviceOptions()...), nil
}

// NewLocalStackClient creates an S3 client configured for LocalStack.
// Defaults: endpoint=http://localhost:4566, region=us-east-1, credentials=test/test.
func NewLocalStackClient(ctx context.Context) (*s3.Client, error) {
	return NewClient(ctx, ClientConfig{
		Region:       defaultRegion,
		Endpoint:     "http://localhost:4566",
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
	})
}
