package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIDDeterministic(t *testing.T) {
	r := Record{Content: "hello", Author: "ed25519:aa", CreatedAt: 1000, Seq: 1}

	id1, err := RecordID(r)
	require.NoError(t, err)
	id2, err := RecordID(r)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, string(id1), 64)

	r.ID = "ignored"
	id3, err := RecordID(r)
	require.NoError(t, err)
	assert.Equal(t, id1, id3, "ID field must not feed the hash")
}

func TestRecordIDDistinguishesFields(t *testing.T) {
	base := Record{Content: "hello", Author: "ed25519:aa", CreatedAt: 1000, Seq: 1}
	baseID, err := RecordID(base)
	require.NoError(t, err)

	variants := map[string]Record{
		"content":     {Content: "world", Author: "ed25519:aa", CreatedAt: 1000, Seq: 1},
		"author":      {Content: "hello", Author: "ed25519:bb", CreatedAt: 1000, Seq: 1},
		"created_at":  {Content: "hello", Author: "ed25519:aa", CreatedAt: 1001, Seq: 1},
		"seq":         {Content: "hello", Author: "ed25519:aa", CreatedAt: 1000, Seq: 2},
		"revision_of": {Content: "hello", Author: "ed25519:aa", CreatedAt: 1000, Seq: 1, RevisionOf: "x"},
	}
	for name, r := range variants {
		t.Run(name, func(t *testing.T) {
			id, err := RecordID(r)
			require.NoError(t, err)
			assert.NotEqual(t, baseID, id)
		})
	}
}

func TestEdgeRefNilAndEmptyTagAgree(t *testing.T) {
	e := EdgeRecord{Base: "a", Target: "b", Partition: ToEntity, Kind: EdgeUpdate, Seq: 3}
	nilRef, err := EdgeRef(e)
	require.NoError(t, err)

	e.Tag = []byte{}
	emptyRef, err := EdgeRef(e)
	require.NoError(t, err)
	assert.Equal(t, nilRef, emptyRef)

	e.Tag = []byte{1}
	tagged, err := EdgeRef(e)
	require.NoError(t, err)
	assert.NotEqual(t, nilRef, tagged)
}

func TestDomainSeparation(t *testing.T) {
	assert.NotEqual(t,
		hashWithDomain(DomainRecord, []byte("x")),
		hashWithDomain(DomainEdge, []byte("x")))
	assert.Equal(t, AnchorKey("root"), AnchorKey("root"))
	assert.NotEqual(t, AnchorKey("root"), AnchorKey("roots"))
}
