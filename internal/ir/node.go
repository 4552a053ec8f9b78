package ir

import (
	"fmt"
	"strings"
)

// NodeKind is the closed set of addressable graph participants.
type NodeKind int

const (
	// NodeIdentity is a cryptographic public key identifying an actor.
	NodeIdentity NodeKind = iota + 1
	// NodeAnchor is a string-keyed bucket node with no owning record.
	NodeAnchor
	// NodeEntity is a versioned entity, keyed by its original record id.
	NodeEntity
)

// String returns the lowercase name used in CLI syntax and JSON.
func (k NodeKind) String() string {
	switch k {
	case NodeIdentity:
		return "identity"
	case NodeAnchor:
		return "anchor"
	case NodeEntity:
		return "entity"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(s string) (NodeKind, error) {
	switch s {
	case "identity":
		return NodeIdentity, nil
	case "anchor":
		return NodeAnchor, nil
	case "entity":
		return NodeEntity, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}

// NodeRef references one node of the graph. The zero value is invalid.
type NodeRef struct {
	Kind NodeKind `json:"kind"`
	ID   string   `json:"id"`
}

// IdentityNode returns a NodeRef for an identity key.
func IdentityNode(key IdentityKey) NodeRef {
	return NodeRef{Kind: NodeIdentity, ID: string(key)}
}

// AnchorNode returns a NodeRef for an anchor label.
func AnchorNode(label string) NodeRef {
	return NodeRef{Kind: NodeAnchor, ID: label}
}

// EntityNode returns a NodeRef for an entity id.
func EntityNode(id Hash) NodeRef {
	return NodeRef{Kind: NodeEntity, ID: string(id)}
}

// IsZero reports whether n is the zero NodeRef.
func (n NodeRef) IsZero() bool {
	return n.Kind == 0 && n.ID == ""
}

// String renders the ref as "kind:id", the syntax accepted by ParseNodeRef.
func (n NodeRef) String() string {
	return n.Kind.String() + ":" + n.ID
}

// ParseNodeRef parses "identity:<key>", "anchor:<label>" or "entity:<id>".
// Anchor labels may themselves contain colons.
func ParseNodeRef(s string) (NodeRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return NodeRef{}, fmt.Errorf("node %q: expected kind:id", s)
	}
	k, err := ParseNodeKind(kind)
	if err != nil {
		return NodeRef{}, fmt.Errorf("node %q: %w", s, err)
	}
	return NodeRef{Kind: k, ID: id}, nil
}

// Key is a canonical addressable key in the edge index.
type Key string

// Hash is a lowercase hex SHA-256 content address.
type Hash string

// IdentityKey is the textual form of an actor's public key.
type IdentityKey string

// Timestamp is microseconds since the Unix epoch.
type Timestamp int64
