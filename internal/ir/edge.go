package ir

import "fmt"

// Partition groups edges by the kind of their target node.
type Partition int

const (
	ToIdentity Partition = iota + 1
	ToAnchor
	ToEntity
)

// Partitions lists every partition in index order.
var Partitions = []Partition{ToIdentity, ToAnchor, ToEntity}

func (p Partition) String() string {
	switch p {
	case ToIdentity:
		return "to_identity"
	case ToAnchor:
		return "to_anchor"
	case ToEntity:
		return "to_entity"
	default:
		return fmt.Sprintf("Partition(%d)", int(p))
	}
}

// PartitionFor returns the partition an edge targeting a node of kind k
// is stored in. It returns 0 for an unknown kind.
func PartitionFor(k NodeKind) Partition {
	switch k {
	case NodeIdentity:
		return ToIdentity
	case NodeAnchor:
		return ToAnchor
	case NodeEntity:
		return ToEntity
	default:
		return 0
	}
}

// EdgeKind distinguishes user relations from version chain links.
type EdgeKind int

const (
	// EdgeLink is a user relation whose tag carries a TagPayload.
	EdgeLink EdgeKind = iota + 1
	// EdgeUpdate chains an entity id to one of its revision records.
	EdgeUpdate
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeLink:
		return "link"
	case EdgeUpdate:
		return "update"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// LinkDirection selects which physical edges create_edge writes.
type LinkDirection int

const (
	// To writes base -> target.
	To LinkDirection = iota + 1
	// From writes target -> base.
	From
	// Bidirectional writes target -> base, then base -> target with a backlink.
	Bidirectional
)

func (d LinkDirection) String() string {
	switch d {
	case To:
		return "to"
	case From:
		return "from"
	case Bidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("LinkDirection(%d)", int(d))
	}
}

// ParseLinkDirection is the inverse of LinkDirection.String. "bi" is
// accepted as a short form.
func ParseLinkDirection(s string) (LinkDirection, error) {
	switch s {
	case "to":
		return To, nil
	case "from":
		return From, nil
	case "bidirectional", "bi":
		return Bidirectional, nil
	default:
		return 0, fmt.Errorf("unknown link direction %q", s)
	}
}

// EntityMeta is the original creation metadata of an entity, copied into
// tags of edges that target it.
type EntityMeta struct {
	CreatedAt Timestamp   `json:"created_at"`
	Creator   IdentityKey `json:"creator"`
}

// TagPayload is the structured content of a link edge's tag.
//
// UserTag nil means absent; an empty non-nil slice is a present empty tag.
// Backlink "" means absent.
type TagPayload struct {
	UserTag      []byte      `json:"user_tag,omitempty"`
	Backlink     Hash        `json:"backlink,omitempty"`
	Target       NodeRef     `json:"target"`
	Denormalized *EntityMeta `json:"denormalized,omitempty"`
}

// EdgeRecord is a physical edge as held by the substrate.
type EdgeRecord struct {
	Ref       Hash        `json:"ref"`
	Base      Key         `json:"base"`
	BaseNode  NodeRef     `json:"base_node"`
	Target    Key         `json:"target"`
	Partition Partition   `json:"partition"`
	Kind      EdgeKind    `json:"kind"`
	Tag       []byte      `json:"tag"`
	Author    IdentityKey `json:"author"`
	CreatedAt Timestamp   `json:"created_at"`
	Seq       int64       `json:"seq"`
}

// Edge is the logical view of a link edge with its tag decoded.
type Edge struct {
	Ref       Hash       `json:"ref"`
	Src       NodeRef    `json:"src"`
	Dst       NodeRef    `json:"dst"`
	Base      Key        `json:"base"`
	Target    Key        `json:"target"`
	Partition Partition  `json:"partition"`
	Kind      EdgeKind   `json:"kind"`
	Tag       TagPayload `json:"tag"`
	RawTag    []byte     `json:"-"`
	CreatedAt Timestamp  `json:"created_at"`
}

// LinkSpec describes one relation relative to an implicit base node.
type LinkSpec struct {
	Direction LinkDirection `json:"direction"`
	Target    NodeRef       `json:"target"`
	Tag       []byte        `json:"tag,omitempty"`
}

// LinkedNode is one neighbour of a node together with the tag of the edge
// that reaches it.
type LinkedNode struct {
	Node NodeRef    `json:"node"`
	Tag  TagPayload `json:"tag"`
}
