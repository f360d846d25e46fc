package awsclient

import (
	"context"

	"github.com/aadesh/autotagger/internal/tagger"
)

// Registry returns a tagger registry whose applicators draw their clients
// from c.
func (c *Cache) Registry() *tagger.Registry {
	reg := tagger.NewRegistry()
	reg.Register(tagger.NewEC2Applicator(func(ctx context.Context, region string) (tagger.EC2API, error) {
		return c.EC2(ctx, region)
	}))
	reg.Register(tagger.NewBucketApplicator(func(ctx context.Context, region string) (tagger.S3API, error) {
		return c.S3(ctx, region)
	}))
	reg.Register(tagger.NewRDSApplicator(func(ctx context.Context, region string) (tagger.RDSAPI, error) {
		return c.RDS(ctx, region)
	}))
	reg.Register(tagger.NewFunctionApplicator(func(ctx context.Context, region string) (tagger.LambdaAPI, error) {
		return c.Lambda(ctx, region)
	}))
	reg.Register(tagger.NewTableApplicator(func(ctx context.Context, region string) (tagger.DynamoDBAPI, error) {
		return c.DynamoDB(ctx, region)
	}))
	return reg
}
