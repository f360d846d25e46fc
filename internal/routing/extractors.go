package routing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aadesh/autotagger/internal/event"
	"github.com/aadesh/autotagger/internal/resource"
)

// Default returns the routing table for every supported resource family.
func Default() *Table {
	t, err := NewTable(
		Entry{Service: "ec2", EventName: "RunInstances", Family: resource.ComputeInstance, Extract: runInstances},
		Entry{Service: "ec2", EventName: "CreateVolume", Family: resource.BlockVolume, Extract: responseID(resource.BlockVolume, "volumeId")},
		Entry{Service: "ec2", EventName: "CreateSecurityGroup", Family: resource.SecurityGroup, Extract: responseID(resource.SecurityGroup, "groupId")},
		Entry{Service: "ec2", EventName: "CreateVpc", Family: resource.Network, Extract: responseID(resource.Network, "vpc", "vpcId")},
		Entry{Service: "ec2", EventName: "CreateSubnet", Family: resource.Subnet, Extract: responseID(resource.Subnet, "subnet", "subnetId")},
		Entry{Service: "s3", EventName: "CreateBucket", Family: resource.ObjectBucket, Extract: createBucket},
		Entry{Service: "rds", EventName: "CreateDBInstance", Family: resource.RelationalInstance, Extract: responseID(resource.RelationalInstance, "dBInstanceArn")},
		Entry{Service: "rds", EventName: "CreateDBCluster", Family: resource.RelationalCluster, Extract: responseID(resource.RelationalCluster, "dBClusterArn")},
		Entry{Service: "lambda", EventName: "CreateFunction20150331", Family: resource.ManagedFunction, Extract: createFunction},
		Entry{Service: "lambda", EventName: "CreateFunction", Family: resource.ManagedFunction, Extract: createFunction},
		Entry{Service: "dynamodb", EventName: "CreateTable", Family: resource.Table, Extract: createTable},
	)
	if err != nil {
		panic(err)
	}
	return t
}

func runInstances(ev *event.Event) ([]resource.Ref, error) {
	var body struct {
		InstancesSet *struct {
			Items []struct {
				InstanceID string `json:"instanceId"`
			} `json:"items"`
		} `json:"instancesSet"`
	}
	ok, err := decode(ev.ResponseElements, &body)
	if err != nil || !ok || body.InstancesSet == nil {
		return nil, err
	}
	var refs []resource.Ref
	for _, it := range body.InstancesSet.Items {
		if it.InstanceID != "" {
			refs = append(refs, newRef(resource.ComputeInstance, it.InstanceID, ev.Region))
		}
	}
	return refs, nil
}

func createBucket(ev *event.Event) ([]resource.Ref, error) {
	var body struct {
		BucketName string `json:"bucketName"`
	}
	ok, err := decode(ev.RequestParameters, &body)
	if err != nil || !ok || body.BucketName == "" {
		return nil, err
	}
	return []resource.Ref{newRef(resource.ObjectBucket, body.BucketName, ev.Region)}, nil
}

func createFunction(ev *event.Event) ([]resource.Ref, error) {
	var body struct {
		FunctionArn  string `json:"functionArn"`
		FunctionName string `json:"functionName"`
	}
	ok, err := decode(ev.ResponseElements, &body)
	if err != nil || !ok {
		return nil, err
	}
	id := body.FunctionArn
	if id == "" {
		id = body.FunctionName
	}
	if id == "" {
		return nil, nil
	}
	return []resource.Ref{newRef(resource.ManagedFunction, id, ev.Region)}, nil
}

func createTable(ev *event.Event) ([]resource.Ref, error) {
	var body struct {
		TableDescription *struct {
			TableArn  string `json:"tableArn"`
			TableName string `json:"tableName"`
		} `json:"tableDescription"`
	}
	ok, err := decode(ev.ResponseElements, &body)
	if err != nil || !ok || body.TableDescription == nil {
		return nil, err
	}
	id := body.TableDescription.TableArn
	if id == "" {
		id = body.TableDescription.TableName
	}
	if id == "" {
		return nil, nil
	}
	return []resource.Ref{newRef(resource.Table, id, ev.Region)}, nil
}

// responseID extracts a single string identifier found at path inside the
// response body. Every step but the last must be an object.
func responseID(family resource.Family, path ...string) ExtractFunc {
	return func(ev *event.Event) ([]resource.Ref, error) {
		raw := ev.ResponseElements
		for i, p := range path {
			var obj map[string]json.RawMessage
			ok, err := decode(raw, &obj)
			if err != nil {
				return nil, fmt.Errorf("responseElements.%s: %w", joinPath(path[:i]), err)
			}
			if !ok {
				return nil, nil
			}
			raw = obj[p]
		}
		var id string
		ok, err := decode(raw, &id)
		if err != nil {
			return nil, fmt.Errorf("responseElements.%s: %w", joinPath(path), err)
		}
		if !ok || id == "" {
			return nil, nil
		}
		return []resource.Ref{newRef(family, id, ev.Region)}, nil
	}
}

// newRef takes the region from an ARN identifier when it names one.
func newRef(family resource.Family, id, region string) resource.Ref {
	if a, ok := resource.ParseARN(id); ok && a.Region != "" {
		region = a.Region
	}
	return resource.Ref{Family: family, ID: id, Region: region}
}

// decode reports ok=false for an absent or null body and an error for a body
// that does not fit v.
func decode(raw json.RawMessage, v any) (ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func joinPath(p []string) string {
	if len(p) == 0 {
		return "(root)"
	}
	return strings.Join(p, ".")
}
