package tagger

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/tags"
)

// RDSAPI is the subset of the RDS client the applicator calls.
type RDSAPI interface {
	AddTagsToResource(ctx context.Context, in *rds.AddTagsToResourceInput, optFns ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error)
}

// RDSApplicator tags database instances and clusters by ARN.
type RDSApplicator struct {
	client ClientFunc[RDSAPI]
}

func NewRDSApplicator(client ClientFunc[RDSAPI]) *RDSApplicator {
	return &RDSApplicator{client: client}
}

func (a *RDSApplicator) Families() []resource.Family {
	return []resource.Family{resource.RelationalInstance, resource.RelationalCluster}
}

func (a *RDSApplicator) Apply(ctx context.Context, ref resource.Ref, set tags.Set) (*Result, error) {
	c, err := a.client(ctx, ref.Region)
	if err != nil {
		return nil, applyErr(ref, err)
	}
	list := make([]rdstypes.Tag, 0, len(set))
	for _, k := range set.Keys() {
		list = append(list, rdstypes.Tag{Key: aws.String(k), Value: aws.String(set[k])})
	}
	_, err = c.AddTagsToResource(ctx, &rds.AddTagsToResourceInput{
		ResourceName: aws.String(ref.ID),
		Tags:         list,
	})
	if err != nil {
		return nil, applyErr(ref, err)
	}
	return &Result{Ref: ref, Target: ref.ID}, nil
}
