// Package awsclient holds the process-lifetime cache of per-region API clients.
package awsclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aadesh/autotagger/internal/metrics"
)

// Service identifiers used as cache keys.
const (
	ServiceEC2      = "ec2"
	ServiceS3       = "s3"
	ServiceRDS      = "rds"
	ServiceLambda   = "lambda"
	ServiceDynamoDB = "dynamodb"
)

// LoadFunc resolves the SDK configuration for a region.
type LoadFunc func(ctx context.Context, region string) (aws.Config, error)

// DefaultLoad uses the SDK's default credential chain.
func DefaultLoad(ctx context.Context, region string) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

type key struct {
	service, region string
}

// Cache lazily builds one client per (service, region) and keeps it for the
// life of the process, so warm invocations reuse connections.
//
// Concurrent first use of the same key may build the client more than once;
// LoadOrStore keeps one and the rest are dropped. Construction has no side
// effects, so the race is harmless.
type Cache struct {
	load    LoadFunc
	clients sync.Map // key → client
	size    atomic.Int64
}

// New creates a Cache that resolves configuration with load.
func New(load LoadFunc) *Cache {
	if load == nil {
		load = DefaultLoad
	}
	return &Cache{load: load}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return int(c.size.Load()) }

func (c *Cache) EC2(ctx context.Context, region string) (*ec2.Client, error) {
	return get(ctx, c, ServiceEC2, region, func(cfg aws.Config) *ec2.Client { return ec2.NewFromConfig(cfg) })
}

func (c *Cache) S3(ctx context.Context, region string) (*s3.Client, error) {
	return get(ctx, c, ServiceS3, region, func(cfg aws.Config) *s3.Client { return s3.NewFromConfig(cfg) })
}

func (c *Cache) RDS(ctx context.Context, region string) (*rds.Client, error) {
	return get(ctx, c, ServiceRDS, region, func(cfg aws.Config) *rds.Client { return rds.NewFromConfig(cfg) })
}

func (c *Cache) Lambda(ctx context.Context, region string) (*lambda.Client, error) {
	return get(ctx, c, ServiceLambda, region, func(cfg aws.Config) *lambda.Client { return lambda.NewFromConfig(cfg) })
}

func (c *Cache) DynamoDB(ctx context.Context, region string) (*dynamodb.Client, error) {
	return get(ctx, c, ServiceDynamoDB, region, func(cfg aws.Config) *dynamodb.Client { return dynamodb.NewFromConfig(cfg) })
}

// sdkConfig returns the shared SDK configuration for region, cached under an
// empty service name.
func (c *Cache) sdkConfig(ctx context.Context, region string) (aws.Config, error) {
	k := key{"", region}
	if v, ok := c.clients.Load(k); ok {
		return v.(aws.Config), nil
	}
	cfg, err := c.load(ctx, region)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config for %s: %w", region, err)
	}
	v, _ := c.store(k, cfg)
	return v.(aws.Config), nil
}

func (c *Cache) store(k key, v any) (any, bool) {
	actual, loaded := c.clients.LoadOrStore(k, v)
	if !loaded {
		metrics.ClientCacheSize.Set(float64(c.size.Add(1)))
	}
	return actual, loaded
}

func get[T any](ctx context.Context, c *Cache, service, region string, build func(aws.Config) T) (T, error) {
	k := key{service, region}
	if v, ok := c.clients.Load(k); ok {
		return v.(T), nil
	}
	cfg, err := c.sdkConfig(ctx, region)
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := c.store(k, build(cfg))
	return v.(T), nil
}
