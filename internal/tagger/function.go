package tagger

import (
	"context"
	"errors"
	"maps"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/tags"
)

// LambdaAPI is the subset of the Lambda client the applicator calls.
type LambdaAPI interface {
	GetFunction(ctx context.Context, in *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	TagResource(ctx context.Context, in *lambda.TagResourceInput, optFns ...func(*lambda.Options)) (*lambda.TagResourceOutput, error)
}

// FunctionApplicator tags managed functions. A short function name is first
// resolved to the function ARN; a failed lookup is reported as OpResolve.
type FunctionApplicator struct {
	client ClientFunc[LambdaAPI]
}

func NewFunctionApplicator(client ClientFunc[LambdaAPI]) *FunctionApplicator {
	return &FunctionApplicator{client: client}
}

func (a *FunctionApplicator) Families() []resource.Family {
	return []resource.Family{resource.ManagedFunction}
}

func (a *FunctionApplicator) Apply(ctx context.Context, ref resource.Ref, set tags.Set) (*Result, error) {
	c, err := a.client(ctx, ref.Region)
	if err != nil {
		return nil, applyErr(ref, err)
	}
	arn := ref.ID
	if !resource.IsARN(arn) {
		out, err := c.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(ref.ID)})
		if err != nil {
			return nil, resolveErr(ref, err)
		}
		if out.Configuration == nil || aws.ToString(out.Configuration.FunctionArn) == "" {
			return nil, resolveErr(ref, errors.New("function lookup returned no ARN"))
		}
		arn = aws.ToString(out.Configuration.FunctionArn)
	}
	_, err = c.TagResource(ctx, &lambda.TagResourceInput{
		Resource: aws.String(arn),
		Tags:     maps.Clone(set),
	})
	if err != nil {
		return nil, applyErr(ref, err)
	}
	return &Result{Ref: ref, Target: arn}, nil
}
