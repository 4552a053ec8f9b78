package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinglink/internal/index"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/testutil"
)

func newIndex(t *testing.T, sub store.Substrate) (*index.Index, *testutil.DeterministicClock) {
	t.Helper()
	clk := testutil.NewDeterministicClock()
	return index.New(sub, testutil.Alice, clk, clk), clk
}

// putEntity stores an original record and returns its id.
func putEntity(t *testing.T, sub store.Substrate, content string, seq int64) ir.Hash {
	t.Helper()
	r := testutil.NewRecord(t, content, testutil.Bob, testutil.Epoch-1000+ir.Timestamp(seq), 1000+seq)
	require.NoError(t, sub.PutRecord(context.Background(), r))
	return r.ID
}

func collect(t *testing.T, x *index.Index, node ir.NodeRef, p ir.Partition) []ir.Edge {
	t.Helper()
	var out []ir.Edge
	for e, err := range x.Query(context.Background(), node, p) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func refs(edges []ir.Edge) []ir.Hash {
	out := make([]ir.Hash, len(edges))
	for i, e := range edges {
		out[i] = e.Ref
	}
	return out
}

func TestCreateEdgeTo(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		id := putEntity(t, sub, "hello", 1)
		root := ir.AnchorNode("root")

		created, err := x.CreateEdge(ctx, root, ir.EntityNode(id), ir.To, []byte("t"))
		require.NoError(t, err)
		require.Len(t, created, 1)

		e := created[0]
		assert.Equal(t, root, e.Src)
		assert.Equal(t, ir.EntityNode(id), e.Dst)
		assert.Equal(t, ir.ToEntity, e.Partition)
		assert.Equal(t, ir.EdgeLink, e.Kind)
		assert.Empty(t, e.Tag.Backlink)
		require.NotNil(t, e.Tag.Denormalized)
		assert.Equal(t, testutil.Bob, e.Tag.Denormalized.Creator)

		got := collect(t, x, root, ir.ToEntity)
		require.Len(t, got, 1)
		assert.Equal(t, e.Ref, got[0].Ref)
		assert.Equal(t, []byte("t"), got[0].Tag.UserTag)
		assert.Equal(t, *e.Tag.Denormalized, *got[0].Tag.Denormalized)

		assert.Empty(t, collect(t, x, ir.EntityNode(id), ir.ToAnchor), "To writes no reverse edge")
	})
}

func TestCreateEdgeFrom(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		id := putEntity(t, sub, "hello", 1)

		created, err := x.CreateEdge(ctx, ir.EntityNode(id), ir.IdentityNode(testutil.Alice), ir.From, nil)
		require.NoError(t, err)
		require.Len(t, created, 1)

		e := created[0]
		assert.Equal(t, ir.IdentityNode(testutil.Alice), e.Src)
		assert.Equal(t, ir.EntityNode(id), e.Dst)
		assert.Empty(t, collect(t, x, ir.EntityNode(id), ir.ToIdentity))
		assert.Len(t, collect(t, x, ir.IdentityNode(testutil.Alice), ir.ToEntity), 1)
	})
}

func TestCreateEdgeBidirectional(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		a := putEntity(t, sub, "a", 1)
		b := putEntity(t, sub, "b", 2)

		created, err := x.CreateEdge(ctx, ir.EntityNode(a), ir.EntityNode(b), ir.Bidirectional, []byte("pair"))
		require.NoError(t, err)
		require.Len(t, created, 2)

		rev, fwd := created[0], created[1]
		assert.Equal(t, ir.EntityNode(b), rev.Src)
		assert.Equal(t, ir.EntityNode(a), rev.Dst)
		assert.Empty(t, rev.Tag.Backlink)

		assert.Equal(t, ir.EntityNode(a), fwd.Src)
		assert.Equal(t, ir.EntityNode(b), fwd.Dst)
		assert.Equal(t, rev.Ref, fwd.Tag.Backlink)

		fromA := collect(t, x, ir.EntityNode(a), ir.ToEntity)
		require.Len(t, fromA, 1)
		assert.Equal(t, rev.Ref, fromA[0].Tag.Backlink, "backlink survives the round trip")

		fromB := collect(t, x, ir.EntityNode(b), ir.ToEntity)
		require.Len(t, fromB, 1)
		assert.Equal(t, rev.Ref, fromB[0].Ref)
	})
}

func TestCreateEdgeMissingEntityWritesNothing(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		a := putEntity(t, sub, "a", 1)
		missing := ir.EntityNode("0000000000000000000000000000000000000000000000000000000000000000")

		_, err := x.CreateEdge(ctx, ir.AnchorNode("root"), missing, ir.To, nil)
		require.Error(t, err)
		assert.True(t, ir.IsNotFound(err))

		_, err = x.CreateEdge(ctx, missing, ir.EntityNode(a), ir.Bidirectional, nil)
		require.Error(t, err)
		assert.True(t, ir.IsNotFound(err))

		assert.Empty(t, collect(t, x, ir.AnchorNode("root"), ir.ToEntity))
		assert.Empty(t, collect(t, x, ir.EntityNode(a), ir.ToEntity))
	})
}

func TestCreateEdgeMissingBaseEntityWritesNothing(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		missing := ir.EntityNode("deadbeef")
		root := ir.AnchorNode("root")

		for _, dir := range []ir.LinkDirection{ir.To, ir.From, ir.Bidirectional} {
			_, err := x.CreateEdge(ctx, missing, root, dir, nil)
			require.Error(t, err, dir.String())
			assert.True(t, ir.IsNotFound(err), dir.String())
		}

		assert.Empty(t, collect(t, x, missing, ir.ToAnchor))
		assert.Empty(t, collect(t, x, root, ir.ToEntity))
	})
}

func TestCreateEdgeTombstonedEntityWritesNothing(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		id := putEntity(t, sub, "gone", 1)
		require.NoError(t, sub.TombstoneRecord(ctx, id))
		gone := ir.EntityNode(id)
		root := ir.AnchorNode("root")

		_, err := x.CreateEdge(ctx, gone, root, ir.To, nil)
		require.Error(t, err)
		assert.True(t, ir.IsNotFound(err))

		_, err = x.CreateEdge(ctx, root, gone, ir.From, nil)
		require.Error(t, err)
		assert.True(t, ir.IsNotFound(err))

		assert.Empty(t, collect(t, x, gone, ir.ToAnchor))
		assert.Empty(t, collect(t, x, root, ir.ToEntity))
	})
}

func TestCreateEdgeRejectsRevisionTarget(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	x, _ := newIndex(t, sub)
	id := putEntity(t, sub, "v1", 1)

	rev := testutil.NewRecord(t, "v2", testutil.Bob, testutil.Epoch, 50)
	rev.RevisionOf = id
	var err error
	rev.ID, err = ir.RecordID(rev)
	require.NoError(t, err)
	require.NoError(t, sub.PutRecord(ctx, rev))

	_, err = x.CreateEdge(ctx, ir.AnchorNode("root"), ir.EntityNode(rev.ID), ir.To, nil)
	require.Error(t, err)
	assert.True(t, ir.IsInvariantViolation(err))
}

func TestCreateEdgeBadNode(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	x, _ := newIndex(t, sub)

	_, err := x.CreateEdge(context.Background(), ir.AnchorNode(""), ir.AnchorNode("x"), ir.To, nil)
	assert.True(t, ir.IsInvariantViolation(err))

	_, err = x.CreateEdge(context.Background(), ir.AnchorNode("a"), ir.AnchorNode("x"), ir.LinkDirection(9), nil)
	assert.True(t, ir.IsInvariantViolation(err))
}

func TestCreateEdgeBidirectionalPartialFailure(t *testing.T) {
	faulty := testutil.NewFaultySubstrate(testutil.OpenSQLite(t))
	ctx := context.Background()
	x, _ := newIndex(t, faulty)

	faulty.FailAt(testutil.OpPutEdge, 2)
	_, err := x.CreateEdge(ctx, ir.AnchorNode("a"), ir.AnchorNode("b"), ir.Bidirectional, nil)
	require.Error(t, err)
	assert.True(t, ir.IsSubstrateError(err))

	pe, ok := ir.AsPartial(err)
	require.True(t, ok)
	require.Len(t, pe.Created, 1)
	assert.Equal(t, ir.AnchorNode("b"), pe.Created[0].Src, "the reverse edge is written first")

	got := collect(t, x, ir.AnchorNode("b"), ir.ToAnchor)
	assert.Equal(t, refs(pe.Created), refs(got))
	assert.Empty(t, collect(t, x, ir.AnchorNode("a"), ir.ToAnchor))
}

func TestQuerySkipsMalformedTags(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, clk := newIndex(t, sub)
		root := ir.AnchorNode("root")

		good, err := x.CreateEdge(ctx, root, ir.AnchorNode("ok"), ir.To, nil)
		require.NoError(t, err)

		bad := testutil.NewEdge(t, root, ir.AnchorNode("bad"), ir.EdgeLink, []byte{0xc1}, clk.Next())
		require.NoError(t, sub.PutEdge(ctx, bad))

		assert.Equal(t, refs(good), refs(collect(t, x, root, ir.ToAnchor)))

		var decodeErrs int
		var seen []ir.Hash
		for e, err := range x.QueryStrict(ctx, root, ir.ToAnchor) {
			if err != nil {
				assert.True(t, ir.IsDecodeError(err))
				decodeErrs++
				assert.Equal(t, bad.Ref, e.Ref, "the physical fields survive a decode failure")
				continue
			}
			seen = append(seen, e.Ref)
		}
		assert.Equal(t, 1, decodeErrs)
		assert.Equal(t, refs(good), seen)
	})
}

func TestQueryIgnoresUpdateEdges(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	x, _ := newIndex(t, sub)
	id := putEntity(t, sub, "v1", 1)

	_, err := x.CreateUpdateEdge(ctx, id, "rev-1")
	require.NoError(t, err)

	assert.Empty(t, collect(t, x, ir.EntityNode(id), ir.ToEntity))

	chain, err := x.UpdateEdges(ctx, id)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, ir.EdgeUpdate, chain[0].Kind)
	assert.Empty(t, chain[0].Tag)
}

func TestDeleteEdge(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)

		created, err := x.CreateEdge(ctx, ir.AnchorNode("a"), ir.AnchorNode("b"), ir.To, []byte("x"))
		require.NoError(t, err)
		ref := created[0].Ref

		e, ok, err := x.DeleteEdge(ctx, ref)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ref, e.Ref)
		assert.Equal(t, []byte("x"), e.Tag.UserTag)

		_, ok, err = x.DeleteEdge(ctx, ref)
		require.NoError(t, err, "deleting twice is a no-op")
		assert.False(t, ok)

		_, _, err = x.DeleteEdge(ctx, "unknown")
		assert.True(t, ir.IsNotFound(err))

		assert.Empty(t, collect(t, x, ir.AnchorNode("a"), ir.ToAnchor))
	})
}

func TestDeleteEdgeRefusesUpdateEdges(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	x, _ := newIndex(t, sub)
	id := putEntity(t, sub, "v1", 1)

	rec, err := x.CreateUpdateEdge(ctx, id, "rev-1")
	require.NoError(t, err)

	_, _, err = x.DeleteEdge(ctx, rec.Ref)
	require.Error(t, err)
	assert.True(t, ir.IsInvariantViolation(err))

	_, err = sub.GetEdge(ctx, rec.Ref)
	assert.NoError(t, err, "update edge must survive")
}

func TestDeleteEdgeWithMalformedTag(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	x, clk := newIndex(t, sub)

	bad := testutil.NewEdge(t, ir.AnchorNode("a"), ir.AnchorNode("b"), ir.EdgeLink, []byte{0x93, 0x01}, clk.Next())
	require.NoError(t, sub.PutEdge(ctx, bad))

	e, ok, err := x.DeleteEdge(ctx, bad.Ref)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bad.Ref, e.Ref)
	assert.True(t, e.Dst.IsZero())
}

func TestDeleteRelation(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		a, b := ir.AnchorNode("a"), ir.AnchorNode("b")

		for _, name := range []string{"from forward", "from reverse"} {
			t.Run(name, func(t *testing.T) {
				created, err := x.CreateEdge(ctx, a, b, ir.Bidirectional, []byte(name))
				require.NoError(t, err)
				rev, fwd := created[0], created[1]

				start := fwd
				if name == "from reverse" {
					start = rev
				}
				removed, err := x.DeleteRelation(ctx, start)
				require.NoError(t, err)
				assert.ElementsMatch(t, []ir.Hash{rev.Ref, fwd.Ref}, refs(removed))

				assert.Empty(t, collect(t, x, a, ir.ToAnchor))
				assert.Empty(t, collect(t, x, b, ir.ToAnchor))
			})
		}
	})
}

func TestDeleteRelationPartialFailure(t *testing.T) {
	faulty := testutil.NewFaultySubstrate(testutil.OpenSQLite(t))
	ctx := context.Background()
	x, _ := newIndex(t, faulty)

	created, err := x.CreateEdge(ctx, ir.AnchorNode("a"), ir.AnchorNode("b"), ir.Bidirectional, nil)
	require.NoError(t, err)
	fwd := created[1]

	faulty.FailAt(testutil.OpDeleteEdge, 2)
	_, err = x.DeleteRelation(ctx, fwd)
	require.Error(t, err)

	pe, ok := ir.AsPartial(err)
	require.True(t, ok)
	assert.Equal(t, []ir.Hash{fwd.Ref}, refs(pe.Removed))
}

func TestDeleteRelations(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		a, b := ir.AnchorNode("a"), ir.AnchorNode("b")

		tagged, err := x.CreateEdge(ctx, a, b, ir.Bidirectional, []byte("t"))
		require.NoError(t, err)
		plain, err := x.CreateEdge(ctx, a, b, ir.To, nil)
		require.NoError(t, err)

		removed, err := x.DeleteRelations(ctx, a, ir.ToAnchor, index.Matches(ir.AnchorKey("b"), []byte("t")))
		require.NoError(t, err)
		assert.ElementsMatch(t, refs(tagged), refs(removed))

		assert.Equal(t, refs(plain), refs(collect(t, x, a, ir.ToAnchor)))
		assert.Empty(t, collect(t, x, b, ir.ToAnchor))
	})
}

func TestDeleteMatchingLeavesPairs(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		x, _ := newIndex(t, sub)
		a, b, c := ir.AnchorNode("a"), ir.AnchorNode("b"), ir.AnchorNode("c")

		pair, err := x.CreateEdge(ctx, a, b, ir.Bidirectional, nil)
		require.NoError(t, err)
		other, err := x.CreateEdge(ctx, a, c, ir.To, nil)
		require.NoError(t, err)

		removed, err := x.DeleteMatching(ctx, a, ir.ToAnchor, index.Targets(ir.AnchorKey("b")))
		require.NoError(t, err)
		assert.Equal(t, []ir.Hash{pair[1].Ref}, refs(removed))

		assert.Equal(t, refs(other), refs(collect(t, x, a, ir.ToAnchor)))
		assert.Equal(t, []ir.Hash{pair[0].Ref}, refs(collect(t, x, b, ir.ToAnchor)), "the reverse edge stays")
	})
}

func TestDeleteMatchingPartialFailure(t *testing.T) {
	faulty := testutil.NewFaultySubstrate(testutil.OpenSQLite(t))
	ctx := context.Background()
	x, _ := newIndex(t, faulty)
	a := ir.AnchorNode("a")

	for _, label := range []string{"b", "c", "d"} {
		_, err := x.CreateEdge(ctx, a, ir.AnchorNode(label), ir.To, nil)
		require.NoError(t, err)
	}

	faulty.FailAt(testutil.OpDeleteEdge, 2)
	_, err := x.DeleteMatching(ctx, a, ir.ToAnchor, func(ir.Edge) bool { return true })
	require.Error(t, err)

	pe, ok := ir.AsPartial(err)
	require.True(t, ok)
	assert.Len(t, pe.Removed, 1)
	assert.Len(t, collect(t, x, a, ir.ToAnchor), 2)
}
