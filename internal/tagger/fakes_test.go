package tagger

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/aadesh/autotagger/internal/tags"
)

func static[C any](c C) ClientFunc[C] {
	return func(context.Context, string) (C, error) { return c, nil }
}

type fakeEC2 struct {
	calls []*ec2.CreateTagsInput
	err   error
}

func (f *fakeEC2) CreateTags(_ context.Context, in *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &ec2.CreateTagsOutput{}, nil
}

// fakeS3 keeps bucket tag collections in memory and replaces them wholesale
// on put, like the real API.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]tags.Set // nil entry: bucket has no tag set
	puts    int
	getErr  error
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: make(map[string]tags.Set)}
}

func (f *fakeS3) GetBucketTagging(_ context.Context, in *s3.GetBucketTaggingInput, _ ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	set, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok || len(set) == 0 {
		return nil, &smithy.GenericAPIError{Code: "NoSuchTagSet", Message: "The TagSet does not exist"}
	}
	out := &s3.GetBucketTaggingOutput{}
	for _, k := range set.Keys() {
		out.TagSet = append(out.TagSet, s3types.Tag{Key: aws.String(k), Value: aws.String(set[k])})
	}
	return out, nil
}

func (f *fakeS3) PutBucketTagging(_ context.Context, in *s3.PutBucketTaggingInput, _ ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts++
	set := make(tags.Set)
	for _, t := range in.Tagging.TagSet {
		set[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	f.buckets[aws.ToString(in.Bucket)] = set
	return &s3.PutBucketTaggingOutput{}, nil
}

type fakeRDS struct {
	calls []*rds.AddTagsToResourceInput
	err   error
}

func (f *fakeRDS) AddTagsToResource(_ context.Context, in *rds.AddTagsToResourceInput, _ ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &rds.AddTagsToResourceOutput{}, nil
}

type fakeLambda struct {
	arns    map[string]string
	lookups int
	tagged  []*lambda.TagResourceInput
	tagErr  error
}

func (f *fakeLambda) GetFunction(_ context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	f.lookups++
	arn, ok := f.arns[aws.ToString(in.FunctionName)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "Function not found"}
	}
	return &lambda.GetFunctionOutput{
		Configuration: &lambdatypes.FunctionConfiguration{FunctionArn: aws.String(arn)},
	}, nil
}

func (f *fakeLambda) TagResource(_ context.Context, in *lambda.TagResourceInput, _ ...func(*lambda.Options)) (*lambda.TagResourceOutput, error) {
	f.tagged = append(f.tagged, in)
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	return &lambda.TagResourceOutput{}, nil
}

type fakeDynamoDB struct {
	arns    map[string]string
	lookups int
	tagged  []*dynamodb.TagResourceInput
}

func (f *fakeDynamoDB) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.lookups++
	arn, ok := f.arns[aws.ToString(in.TableName)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "Requested resource not found"}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &ddbtypes.TableDescription{TableArn: aws.String(arn)},
	}, nil
}

func (f *fakeDynamoDB) TagResource(_ context.Context, in *dynamodb.TagResourceInput, _ ...func(*dynamodb.Options)) (*dynamodb.TagResourceOutput, error) {
	f.tagged = append(f.tagged, in)
	return &dynamodb.TagResourceOutput{}, nil
}
