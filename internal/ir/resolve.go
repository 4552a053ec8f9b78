package ir

import "strings"

// Resolve maps a logical node reference to its canonical index key.
//
// Keys are "kind:" followed by the identity key, the entity id, or for
// anchors the domain-separated hash of the label (see AnchorKey). Since
// the kind name leads every key, nodes of different kinds never share a
// key even when their ids are equal. An empty anchor label, an empty id or
// an unknown kind is an InvariantViolation.
func Resolve(n NodeRef) (Key, error) {
	switch n.Kind {
	case NodeIdentity, NodeEntity:
		if n.ID == "" {
			return "", Invariant("empty %s id", n.Kind)
		}
		return Key(n.Kind.String() + ":" + n.ID), nil
	case NodeAnchor:
		if n.ID == "" {
			return "", Invariant("empty anchor label")
		}
		return AnchorKey(n.ID), nil
	default:
		return "", Invariant("unknown node kind %d", int(n.Kind))
	}
}

// MustResolve is Resolve for refs already known to be valid.
// It panics on error.
func MustResolve(n NodeRef) Key {
	k, err := Resolve(n)
	if err != nil {
		panic(err)
	}
	return k
}

// EntityID returns the entity or record id k was resolved from. ok is
// false when k is not an entity key.
func (k Key) EntityID() (id Hash, ok bool) {
	rest, ok := strings.CutPrefix(string(k), NodeEntity.String()+":")
	if !ok || rest == "" {
		return "", false
	}
	return Hash(rest), true
}
