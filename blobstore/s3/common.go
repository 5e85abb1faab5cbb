// Package s3 implements blobstore.BlobStore on Amazon S3, with an optional
// DynamoDB-backed pointer store for coordinating concurrent backup writers.
package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientOptions configures the AWS clients created by NewClients.
type ClientOptions struct {
	// Region overrides the region from the environment or shared config.
	Region string

	// Profile selects a shared-config profile.
	Profile string

	// EndpointURL points the S3 client at an S3-compatible endpoint.
	EndpointURL string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible servers.
	UsePathStyle bool
}

// Clients bundles the AWS service clients used by the backup stores.
type Clients struct {
	S3  *s3.Client
	DDB *dynamodb.Client
}

// NewClients creates S3 and DynamoDB clients from the default credential
// chain plus the given overrides.
func NewClients(ctx context.Context, opts ClientOptions) (*Clients, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &Clients{
		S3:  s3Client,
		DDB: dynamodb.NewFromConfig(cfg),
	}, nil
}
