package tagger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/tags"
)

// S3API is the subset of the S3 client the applicator calls.
type S3API interface {
	GetBucketTagging(ctx context.Context, in *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	PutBucketTagging(ctx context.Context, in *s3.PutBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error)
}

// errCodeNoSuchTagSet is returned by GetBucketTagging for an untagged bucket.
const errCodeNoSuchTagSet = "NoSuchTagSet"

// BucketApplicator tags object buckets. PutBucketTagging replaces the whole
// tag collection, so the applicator reads the current tags, merges the new
// ones over them and writes the union back.
//
// Merges for the same bucket are serialized within the process. Two processes
// merging into the same bucket at once can still lose an update; the bucket
// tagging API offers no version token to guard the write with.
type BucketApplicator struct {
	client ClientFunc[S3API]

	mu    sync.Mutex
	locks map[string]*bucketLock // only buckets with a merge in flight
}

type bucketLock struct {
	sync.Mutex
	refs int
}

func NewBucketApplicator(client ClientFunc[S3API]) *BucketApplicator {
	return &BucketApplicator{client: client}
}

func (a *BucketApplicator) Families() []resource.Family {
	return []resource.Family{resource.ObjectBucket}
}

func (a *BucketApplicator) Apply(ctx context.Context, ref resource.Ref, set tags.Set) (*Result, error) {
	c, err := a.client(ctx, ref.Region)
	if err != nil {
		return nil, applyErr(ref, err)
	}

	unlock := a.lock(ref.ID)
	defer unlock()

	existing, err := a.current(ctx, c, ref.ID)
	if err != nil {
		return nil, applyErr(ref, fmt.Errorf("read existing tags: %w", err))
	}
	merged := tags.Overlay(existing, set)
	if merged.Equal(existing) {
		return &Result{Ref: ref, Target: ref.ID}, nil
	}

	_, err = c.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(ref.ID),
		Tagging: &s3types.Tagging{TagSet: s3Tags(merged)},
	})
	if err != nil {
		return nil, applyErr(ref, fmt.Errorf("write merged tags: %w", err))
	}
	return &Result{Ref: ref, Target: ref.ID}, nil
}

// current returns the bucket's tags, treating "no tag set" as empty.
func (a *BucketApplicator) current(ctx context.Context, c S3API, bucket string) (tags.Set, error) {
	out, err := c.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == errCodeNoSuchTagSet {
			return tags.Set{}, nil
		}
		return nil, err
	}
	existing := make(tags.Set, len(out.TagSet))
	for _, t := range out.TagSet {
		existing[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return existing, nil
}

// lock serializes merges for bucket. The entry is dropped by the last
// holder, so the table only holds buckets being tagged right now.
func (a *BucketApplicator) lock(bucket string) (unlock func()) {
	a.mu.Lock()
	if a.locks == nil {
		a.locks = make(map[string]*bucketLock)
	}
	l, ok := a.locks[bucket]
	if !ok {
		l = &bucketLock{}
		a.locks[bucket] = l
	}
	l.refs++
	a.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		a.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(a.locks, bucket)
		}
		a.mu.Unlock()
	}
}

func s3Tags(set tags.Set) []s3types.Tag {
	out := make([]s3types.Tag, 0, len(set))
	for _, k := range set.Keys() {
		out = append(out, s3types.Tag{Key: aws.String(k), Value: aws.String(set[k])})
	}
	return out
}
