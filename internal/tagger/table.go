package tagger

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/tags"
)

// DynamoDBAPI is the subset of the DynamoDB client the applicator calls.
type DynamoDBAPI interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	TagResource(ctx context.Context, in *dynamodb.TagResourceInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TagResourceOutput, error)
}

// TableApplicator tags tables. Like FunctionApplicator it resolves a bare
// table name to the table ARN before tagging.
type TableApplicator struct {
	client ClientFunc[DynamoDBAPI]
}

func NewTableApplicator(client ClientFunc[DynamoDBAPI]) *TableApplicator {
	return &TableApplicator{client: client}
}

func (a *TableApplicator) Families() []resource.Family {
	return []resource.Family{resource.Table}
}

func (a *TableApplicator) Apply(ctx context.Context, ref resource.Ref, set tags.Set) (*Result, error) {
	c, err := a.client(ctx, ref.Region)
	if err != nil {
		return nil, applyErr(ref, err)
	}
	arn := ref.ID
	if !resource.IsARN(arn) {
		out, err := c.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(ref.ID)})
		if err != nil {
			return nil, resolveErr(ref, err)
		}
		if out.Table == nil || aws.ToString(out.Table.TableArn) == "" {
			return nil, resolveErr(ref, errors.New("table lookup returned no ARN"))
		}
		arn = aws.ToString(out.Table.TableArn)
	}
	list := make([]ddbtypes.Tag, 0, len(set))
	for _, k := range set.Keys() {
		list = append(list, ddbtypes.Tag{Key: aws.String(k), Value: aws.String(set[k])})
	}
	_, err = c.TagResource(ctx, &dynamodb.TagResourceInput{
		ResourceArn: aws.String(arn),
		Tags:        list,
	})
	if err != nil {
		return nil, applyErr(ref, err)
	}
	return &Result{Ref: ref, Target: arn}, nil
}
