package tagger

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/tags"
)

// EC2API is the subset of the EC2 client the applicator calls.
type EC2API interface {
	CreateTags(ctx context.Context, in *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
}

// EC2Applicator tags instances, volumes, security groups, VPCs and subnets.
// CreateTags is an upsert, so repeated application is a no-op.
type EC2Applicator struct {
	client ClientFunc[EC2API]
}

func NewEC2Applicator(client ClientFunc[EC2API]) *EC2Applicator {
	return &EC2Applicator{client: client}
}

func (a *EC2Applicator) Families() []resource.Family {
	return []resource.Family{
		resource.ComputeInstance,
		resource.BlockVolume,
		resource.SecurityGroup,
		resource.Network,
		resource.Subnet,
	}
}

func (a *EC2Applicator) Apply(ctx context.Context, ref resource.Ref, set tags.Set) (*Result, error) {
	c, err := a.client(ctx, ref.Region)
	if err != nil {
		return nil, applyErr(ref, err)
	}
	_, err = c.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{ref.ID},
		Tags:      ec2Tags(set),
	})
	if err != nil {
		return nil, applyErr(ref, err)
	}
	return &Result{Ref: ref, Target: ref.ID}, nil
}

func ec2Tags(set tags.Set) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(set))
	for _, k := range set.Keys() {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(set[k])})
	}
	return out
}
