package routing_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadesh/autotagger/internal/event"
	"github.com/aadesh/autotagger/internal/resource"
	"github.com/aadesh/autotagger/internal/routing"
)

func makeEvent(source, name, request, response string) *event.Event {
	ev := &event.Event{Source: source, Name: name, Region: "eu-west-1"}
	if request != "" {
		ev.RequestParameters = json.RawMessage(request)
	}
	if response != "" {
		ev.ResponseElements = json.RawMessage(response)
	}
	return ev
}

func extract(t *testing.T, ev *event.Event) ([]resource.Ref, error) {
	t.Helper()
	entry, ok := routing.Default().Route(ev.Source, ev.Name)
	require.True(t, ok, "no route for %s/%s", ev.Source, ev.Name)
	return entry.Run(ev)
}

func TestDefaultCoversEveryFamily(t *testing.T) {
	tbl := routing.Default()
	assert.ElementsMatch(t, resource.Families(), tbl.Families())
	assert.Equal(t, 11, tbl.Len())
}

func TestRouteUsesServiceToken(t *testing.T) {
	tbl := routing.Default()

	for _, src := range []string{"ec2.amazonaws.com", "ec2.service", "ec2"} {
		e, ok := tbl.Route(src, "RunInstances")
		require.True(t, ok, src)
		assert.Equal(t, resource.ComputeInstance, e.Family)
	}

	_, ok := tbl.Route("ec2.amazonaws.com", "DescribeInstances")
	assert.False(t, ok)
	_, ok = tbl.Route("sqs.amazonaws.com", "CreateQueue")
	assert.False(t, ok)
	_, ok = tbl.Route("", "")
	assert.False(t, ok)
}

func TestExtractors(t *testing.T) {
	cases := []struct {
		name string
		ev   *event.Event
		want []resource.Ref
	}{
		{
			name: "run instances yields every instance",
			ev: makeEvent("ec2.amazonaws.com", "RunInstances", "",
				`{"instancesSet":{"items":[{"instanceId":"i-1"},{"instanceId":""},{"instanceId":"i-2"},{"instanceId":"i-3"}]}}`),
			want: []resource.Ref{
				{Family: resource.ComputeInstance, ID: "i-1", Region: "eu-west-1"},
				{Family: resource.ComputeInstance, ID: "i-2", Region: "eu-west-1"},
				{Family: resource.ComputeInstance, ID: "i-3", Region: "eu-west-1"},
			},
		},
		{
			name: "volume",
			ev:   makeEvent("ec2.amazonaws.com", "CreateVolume", "", `{"volumeId":"vol-1","size":8}`),
			want: []resource.Ref{{Family: resource.BlockVolume, ID: "vol-1", Region: "eu-west-1"}},
		},
		{
			name: "security group",
			ev:   makeEvent("ec2.amazonaws.com", "CreateSecurityGroup", "", `{"_return":true,"groupId":"sg-1"}`),
			want: []resource.Ref{{Family: resource.SecurityGroup, ID: "sg-1", Region: "eu-west-1"}},
		},
		{
			name: "vpc",
			ev:   makeEvent("ec2.amazonaws.com", "CreateVpc", "", `{"vpc":{"vpcId":"vpc-1","state":"pending"}}`),
			want: []resource.Ref{{Family: resource.Network, ID: "vpc-1", Region: "eu-west-1"}},
		},
		{
			name: "subnet",
			ev:   makeEvent("ec2.amazonaws.com", "CreateSubnet", "", `{"subnet":{"subnetId":"subnet-1"}}`),
			want: []resource.Ref{{Family: resource.Subnet, ID: "subnet-1", Region: "eu-west-1"}},
		},
		{
			name: "bucket from request parameters",
			ev:   makeEvent("s3.amazonaws.com", "CreateBucket", `{"bucketName":"demo-bucket","Host":"demo-bucket.s3.amazonaws.com"}`, ""),
			want: []resource.Ref{{Family: resource.ObjectBucket, ID: "demo-bucket", Region: "eu-west-1"}},
		},
		{
			name: "db instance takes region from arn",
			ev:   makeEvent("rds.amazonaws.com", "CreateDBInstance", "", `{"dBInstanceArn":"arn:aws:rds:us-west-2:1:db:orders"}`),
			want: []resource.Ref{{Family: resource.RelationalInstance, ID: "arn:aws:rds:us-west-2:1:db:orders", Region: "us-west-2"}},
		},
		{
			name: "db cluster",
			ev:   makeEvent("rds.amazonaws.com", "CreateDBCluster", "", `{"dBClusterArn":"arn:aws:rds:eu-west-1:1:cluster:c1"}`),
			want: []resource.Ref{{Family: resource.RelationalCluster, ID: "arn:aws:rds:eu-west-1:1:cluster:c1", Region: "eu-west-1"}},
		},
		{
			name: "function prefers arn",
			ev: makeEvent("lambda.amazonaws.com", "CreateFunction20150331", "",
				`{"functionName":"fn","functionArn":"arn:aws:lambda:eu-west-1:1:function:fn"}`),
			want: []resource.Ref{{Family: resource.ManagedFunction, ID: "arn:aws:lambda:eu-west-1:1:function:fn", Region: "eu-west-1"}},
		},
		{
			name: "function short name",
			ev:   makeEvent("lambda.amazonaws.com", "CreateFunction", "", `{"functionName":"fn"}`),
			want: []resource.Ref{{Family: resource.ManagedFunction, ID: "fn", Region: "eu-west-1"}},
		},
		{
			name: "table name",
			ev:   makeEvent("dynamodb.amazonaws.com", "CreateTable", "", `{"tableDescription":{"tableName":"orders"}}`),
			want: []resource.Ref{{Family: resource.Table, ID: "orders", Region: "eu-west-1"}},
		},
		{
			name: "table arn",
			ev: makeEvent("dynamodb.amazonaws.com", "CreateTable", "",
				`{"tableDescription":{"tableName":"orders","tableArn":"arn:aws:dynamodb:eu-west-1:1:table/orders"}}`),
			want: []resource.Ref{{Family: resource.Table, ID: "arn:aws:dynamodb:eu-west-1:1:table/orders", Region: "eu-west-1"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extract(t, tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractorsTolerateAbsentBodies(t *testing.T) {
	// A failed API call still produces an event, with no response elements.
	cases := []*event.Event{
		makeEvent("ec2.amazonaws.com", "RunInstances", "", ""),
		makeEvent("ec2.amazonaws.com", "RunInstances", "", `null`),
		makeEvent("ec2.amazonaws.com", "RunInstances", "", `{}`),
		makeEvent("ec2.amazonaws.com", "RunInstances", "", `{"instancesSet":{}}`),
		makeEvent("ec2.amazonaws.com", "CreateVolume", "", ""),
		makeEvent("ec2.amazonaws.com", "CreateVpc", "", `{}`),
		makeEvent("ec2.amazonaws.com", "CreateVpc", "", `{"vpc":null}`),
		makeEvent("s3.amazonaws.com", "CreateBucket", "", ""),
		makeEvent("rds.amazonaws.com", "CreateDBInstance", "", `null`),
		makeEvent("lambda.amazonaws.com", "CreateFunction20150331", "", `{}`),
		makeEvent("dynamodb.amazonaws.com", "CreateTable", "", `{"tableDescription":{}}`),
	}
	for _, ev := range cases {
		t.Run(ev.Name, func(t *testing.T) {
			got, err := extract(t, ev)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestExtractorsRejectMalformedBodies(t *testing.T) {
	cases := []*event.Event{
		makeEvent("ec2.amazonaws.com", "RunInstances", "", `"oops"`),
		makeEvent("ec2.amazonaws.com", "RunInstances", "", `{"instancesSet":{"items":"i-1"}}`),
		makeEvent("ec2.amazonaws.com", "CreateVolume", "", `{"volumeId":42}`),
		makeEvent("ec2.amazonaws.com", "CreateVpc", "", `{"vpc":"vpc-1"}`),
		makeEvent("s3.amazonaws.com", "CreateBucket", `[1,2]`, ""),
		makeEvent("dynamodb.amazonaws.com", "CreateTable", "", `{"tableDescription":true}`),
	}
	for _, ev := range cases {
		t.Run(ev.Name, func(t *testing.T) {
			_, err := extract(t, ev)
			require.Error(t, err)
			var xe *routing.ExtractError
			require.True(t, errors.As(err, &xe))
			assert.Equal(t, ev.Name, xe.Name)
			assert.Equal(t, ev.Source, xe.Source)
		})
	}
}

func TestExtractionIsIdempotent(t *testing.T) {
	ev := makeEvent("ec2.amazonaws.com", "RunInstances", "",
		`{"instancesSet":{"items":[{"instanceId":"i-1"},{"instanceId":"i-2"}]}}`)
	first, err := extract(t, ev)
	require.NoError(t, err)
	second, err := extract(t, ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewTableRejectsBadEntries(t *testing.T) {
	noop := func(*event.Event) ([]resource.Ref, error) { return nil, nil }

	_, err := routing.NewTable(
		routing.Entry{Service: "ec2", EventName: "CreateVolume", Family: resource.BlockVolume, Extract: noop},
		routing.Entry{Service: "ec2", EventName: "CreateVolume", Family: resource.BlockVolume, Extract: noop},
	)
	assert.ErrorContains(t, err, "duplicate")

	_, err = routing.NewTable(routing.Entry{Service: "ec2", EventName: "CreateVolume", Family: resource.BlockVolume})
	assert.ErrorContains(t, err, "incomplete")
}
