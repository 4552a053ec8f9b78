package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	k, err := Resolve(IdentityNode("ed25519:abcd"))
	require.NoError(t, err)
	assert.Equal(t, Key("identity:ed25519:abcd"), k)

	k, err = Resolve(EntityNode("e1"))
	require.NoError(t, err)
	assert.Equal(t, Key("entity:e1"), k)

	k, err = Resolve(AnchorNode("root"))
	require.NoError(t, err)
	assert.Equal(t, AnchorKey("root"), k)
	assert.NotEqual(t, Key("root"), k)
}

func TestResolveSeparatesKinds(t *testing.T) {
	keys := map[Key]NodeRef{}
	for _, n := range []NodeRef{IdentityNode("x"), EntityNode("x"), AnchorNode("x")} {
		k, err := Resolve(n)
		require.NoError(t, err)
		prev, dup := keys[k]
		assert.False(t, dup, "%v and %v share key %q", prev, n, k)
		keys[k] = n
	}
	assert.Len(t, keys, 3)

	// An identity whose key spells an anchor hash stays an identity.
	anchor := AnchorKey("root")
	k, err := Resolve(IdentityNode(IdentityKey(anchor)))
	require.NoError(t, err)
	assert.NotEqual(t, anchor, k)
}

func TestKeyEntityID(t *testing.T) {
	id, ok := MustResolve(EntityNode("e1")).EntityID()
	assert.True(t, ok)
	assert.Equal(t, Hash("e1"), id)

	_, ok = MustResolve(IdentityNode("e1")).EntityID()
	assert.False(t, ok)
	_, ok = AnchorKey("e1").EntityID()
	assert.False(t, ok)
	_, ok = Key("entity:").EntityID()
	assert.False(t, ok)
}

func TestResolveRejectsMalformed(t *testing.T) {
	for _, n := range []NodeRef{AnchorNode(""), EntityNode(""), IdentityNode(""), {}, {Kind: 9, ID: "x"}} {
		_, err := Resolve(n)
		require.Error(t, err, "%v", n)
		assert.True(t, IsInvariantViolation(err))
	}
}

func TestMustResolvePanics(t *testing.T) {
	assert.Panics(t, func() { MustResolve(AnchorNode("")) })
	assert.NotPanics(t, func() { MustResolve(AnchorNode("a")) })
}

func TestParseNodeRef(t *testing.T) {
	n, err := ParseNodeRef("anchor:a:b")
	require.NoError(t, err)
	assert.Equal(t, AnchorNode("a:b"), n)
	assert.Equal(t, "anchor:a:b", n.String())

	n, err = ParseNodeRef("entity:abc")
	require.NoError(t, err)
	assert.Equal(t, EntityNode("abc"), n)

	_, err = ParseNodeRef("thing:abc")
	assert.Error(t, err)
	_, err = ParseNodeRef("abc")
	assert.Error(t, err)
}

func TestPartitionFor(t *testing.T) {
	assert.Equal(t, ToIdentity, PartitionFor(NodeIdentity))
	assert.Equal(t, ToAnchor, PartitionFor(NodeAnchor))
	assert.Equal(t, ToEntity, PartitionFor(NodeEntity))
	assert.Equal(t, Partition(0), PartitionFor(0))
}
