// Package resource names the cloud resources the tagger knows how to reach.
package resource

import "strings"

// Family is a category of resource with its own tagging API shape.
type Family string

const (
	ComputeInstance    Family = "compute-instance"
	BlockVolume        Family = "block-volume"
	SecurityGroup      Family = "security-group"
	Network            Family = "network"
	Subnet             Family = "subnet"
	ObjectBucket       Family = "object-bucket"
	RelationalInstance Family = "relational-instance"
	RelationalCluster  Family = "relational-cluster"
	ManagedFunction    Family = "managed-function"
	Table              Family = "table"
)

// Families lists every supported family.
func Families() []Family {
	return []Family{
		ComputeInstance, BlockVolume, SecurityGroup, Network, Subnet,
		ObjectBucket, RelationalInstance, RelationalCluster, ManagedFunction, Table,
	}
}

// Ref identifies one resource for the duration of a dispatch.
type Ref struct {
	Family Family `json:"family"`
	ID     string `json:"identifier"`
	Region string `json:"region"`
}

// String renders "family:identifier".
func (r Ref) String() string {
	return string(r.Family) + ":" + r.ID
}

// ARN holds the components of arn:partition:service:region:account:resource.
type ARN struct {
	Partition string
	Service   string
	Region    string
	AccountID string
	Resource  string
}

// IsARN reports whether s looks like a fully-qualified resource name.
func IsARN(s string) bool {
	return strings.HasPrefix(s, "arn:")
}

// ParseARN splits s into its components. The resource part keeps any further
// ':' separators. ok is false when s is not an ARN.
func ParseARN(s string) (a ARN, ok bool) {
	if !IsARN(s) {
		return ARN{}, false
	}
	parts := strings.SplitN(s, ":", 6)
	if len(parts) < 6 {
		return ARN{}, false
	}
	return ARN{
		Partition: parts[1],
		Service:   parts[2],
		Region:    parts[3],
		AccountID: parts[4],
		Resource:  parts[5],
	}, true
}
