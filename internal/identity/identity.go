// Package identity derives the creator of a resource from an audit event.
package identity

import (
	"encoding/json"
	"strings"

	"github.com/aadesh/autotagger/internal/event"
	"github.com/aadesh/autotagger/internal/tags"
)

// Unknown is the sentinel for any field the event does not carry.
const Unknown = "unknown"

// PrincipalType is the closed set of principal kinds the extractor resolves.
type PrincipalType string

const (
	IAMUser     PrincipalType = "IAMUser"
	AssumedRole PrincipalType = "AssumedRole"
	Root        PrincipalType = "Root"
	Other       PrincipalType = "Unknown"
)

// Tag keys written for every resource.
const (
	TagCreatedBy          = "CreatedBy"
	TagCreatedByUser      = "CreatedByUser"
	TagCreatedByType      = "CreatedByType"
	TagCreatedByAccountID = "CreatedByAccountId"
	TagCreatedAt          = "CreatedAt"
)

// Identity is the creator of a resource. Every field is populated; absent
// event fields carry Unknown.
type Identity struct {
	PrincipalARN  string `json:"principalArn"`
	PrincipalName string `json:"principalName"`
	// Type is the principal type exactly as the event reported it.
	Type      string `json:"principalType"`
	AccountID string `json:"accountId"`
	CreatedAt string `json:"createdAt"`
}

// Kind maps Type onto the closed PrincipalType set.
func (id Identity) Kind() PrincipalType {
	switch PrincipalType(id.Type) {
	case IAMUser, AssumedRole, Root:
		return PrincipalType(id.Type)
	}
	return Other
}

// Tags returns the identity-derived tag layer.
func (id Identity) Tags() tags.Set {
	return tags.Set{
		TagCreatedBy:          id.PrincipalARN,
		TagCreatedByUser:      id.PrincipalName,
		TagCreatedByType:      id.Type,
		TagCreatedByAccountID: id.AccountID,
		TagCreatedAt:          id.CreatedAt,
	}
}

// Extract resolves the creator identity of ev. It never fails: a missing or
// malformed userIdentity yields an Identity made of Unknown values.
func Extract(ev *event.Event) Identity {
	var ui map[string]any
	if len(ev.UserIdentity) > 0 {
		// Non-object payloads leave ui nil, which reads as empty.
		_ = json.Unmarshal(ev.UserIdentity, &ui)
	}

	id := Identity{
		PrincipalARN: orUnknown(lookup(ui, "arn")),
		Type:         orUnknown(lookup(ui, "type")),
		AccountID:    orUnknown(lookup(ui, "accountId")),
		CreatedAt:    orUnknown(ev.Time),
	}

	switch id.Kind() {
	case IAMUser:
		id.PrincipalName = orUnknown(lookup(ui, "userName"))
	case AssumedRole:
		name := lookup(ui, "sessionContext", "sessionIssuer", "userName")
		if name == "" {
			name = lastSegment(id.PrincipalARN)
		}
		id.PrincipalName = orUnknown(name)
	case Root:
		id.PrincipalName = "root"
	default:
		id.PrincipalName = Unknown
	}
	return id
}

// lookup walks nested objects and returns the string at path, or "" when any
// step is absent or of the wrong type.
func lookup(m map[string]any, path ...string) string {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[p]
	}
	s, _ := cur.(string)
	return s
}

func lastSegment(arn string) string {
	return arn[strings.LastIndexByte(arn, '/')+1:]
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}
