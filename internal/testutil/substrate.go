package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
)

// RunSubstrateSuite checks the store.Substrate contract against a backend.
// open must return a fresh, empty substrate on every call.
func RunSubstrateSuite(t *testing.T, open func(testing.TB) store.Substrate) {
	ctx := context.Background()

	t.Run("record round trip", func(t *testing.T) {
		s := open(t)
		r := NewRecord(t, "hello", Alice, Epoch, 1)
		r.RevisionOf = "original-id"

		require.NoError(t, s.PutRecord(ctx, r))
		got, err := s.GetRecord(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r, got)
	})

	t.Run("put record is idempotent", func(t *testing.T) {
		s := open(t)
		r := NewRecord(t, "hello", Alice, Epoch, 1)
		require.NoError(t, s.PutRecord(ctx, r))

		changed := r
		changed.Content = "other"
		require.NoError(t, s.PutRecord(ctx, changed))

		got, err := s.GetRecord(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Content, "first write wins")
	})

	t.Run("missing record is not found", func(t *testing.T) {
		s := open(t)
		_, err := s.GetRecord(ctx, "nope")
		require.Error(t, err)
		assert.True(t, ir.IsNotFound(err))
	})

	t.Run("tombstone hides record", func(t *testing.T) {
		s := open(t)
		r := NewRecord(t, "hello", Alice, Epoch, 1)
		require.NoError(t, s.PutRecord(ctx, r))

		require.NoError(t, s.TombstoneRecord(ctx, r.ID))
		_, err := s.GetRecord(ctx, r.ID)
		assert.True(t, ir.IsNotFound(err))

		require.NoError(t, s.TombstoneRecord(ctx, r.ID), "second tombstone is a no-op")

		require.NoError(t, s.PutRecord(ctx, r))
		_, err = s.GetRecord(ctx, r.ID)
		assert.True(t, ir.IsNotFound(err), "re-putting must not revive a tombstoned record")
	})

	t.Run("tombstone unknown record", func(t *testing.T) {
		s := open(t)
		err := s.TombstoneRecord(ctx, "nope")
		require.Error(t, err)
		assert.True(t, ir.IsNotFound(err))
	})

	t.Run("edge round trip", func(t *testing.T) {
		s := open(t)
		e := NewEdge(t, ir.AnchorNode("root"), ir.EntityNode("e1"), ir.EdgeLink, []byte{1, 2, 3}, 5)

		require.NoError(t, s.PutEdge(ctx, e))
		got, err := s.GetEdge(ctx, e.Ref)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	})

	t.Run("empty tag round trips", func(t *testing.T) {
		s := open(t)
		e := NewEdge(t, ir.EntityNode("e1"), ir.EntityNode("r1"), ir.EdgeUpdate, nil, 1)
		require.NoError(t, s.PutEdge(ctx, e))

		got, err := s.GetEdge(ctx, e.Ref)
		require.NoError(t, err)
		assert.Empty(t, got.Tag)
		assert.Equal(t, ir.EdgeUpdate, got.Kind)
	})

	t.Run("query filters by base partition and kind", func(t *testing.T) {
		s := open(t)
		root := ir.AnchorNode("root")
		e1 := NewEdge(t, root, ir.EntityNode("e1"), ir.EdgeLink, nil, 3)
		e2 := NewEdge(t, root, ir.EntityNode("e2"), ir.EdgeLink, nil, 1)
		toAnchor := NewEdge(t, root, ir.AnchorNode("other"), ir.EdgeLink, nil, 2)
		update := NewEdge(t, root, ir.EntityNode("e3"), ir.EdgeUpdate, nil, 4)
		elsewhere := NewEdge(t, ir.AnchorNode("else"), ir.EntityNode("e1"), ir.EdgeLink, nil, 5)
		for _, e := range []ir.EdgeRecord{e1, e2, toAnchor, update, elsewhere} {
			require.NoError(t, s.PutEdge(ctx, e))
		}

		got, err := store.Collect(s.QueryEdges(ctx, ir.MustResolve(root), ir.ToEntity, ir.EdgeLink))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, e2.Ref, got[0].Ref, "ordered by seq")
		assert.Equal(t, e1.Ref, got[1].Ref)

		got, err = store.Collect(s.QueryEdges(ctx, ir.MustResolve(root), ir.ToEntity, ir.EdgeUpdate))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, update.Ref, got[0].Ref)

		got, err = store.Collect(s.QueryEdges(ctx, ir.MustResolve(root), ir.ToIdentity, ir.EdgeLink))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("query stops when consumer stops", func(t *testing.T) {
		s := open(t)
		root := ir.AnchorNode("root")
		for i := int64(1); i <= 3; i++ {
			require.NoError(t, s.PutEdge(ctx, NewEdge(t, root, ir.AnchorNode("x"), ir.EdgeLink, []byte{byte(i)}, i)))
		}

		n := 0
		for _, err := range s.QueryEdges(ctx, ir.MustResolve(root), ir.ToAnchor, ir.EdgeLink) {
			require.NoError(t, err)
			n++
			break
		}
		assert.Equal(t, 1, n)
	})

	t.Run("delete edge", func(t *testing.T) {
		s := open(t)
		e := NewEdge(t, ir.AnchorNode("root"), ir.EntityNode("e1"), ir.EdgeLink, nil, 1)
		require.NoError(t, s.PutEdge(ctx, e))

		removed, err := s.DeleteEdge(ctx, e.Ref)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = s.DeleteEdge(ctx, e.Ref)
		require.NoError(t, err)
		assert.False(t, removed, "second delete is a no-op")

		_, err = s.GetEdge(ctx, e.Ref)
		assert.True(t, ir.IsNotFound(err))

		got, err := store.Collect(s.QueryEdges(ctx, e.Base, e.Partition, e.Kind))
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, s.PutEdge(ctx, e))
		_, err = s.GetEdge(ctx, e.Ref)
		assert.True(t, ir.IsNotFound(err), "re-putting must not revive a deleted edge")
	})

	t.Run("delete unknown edge", func(t *testing.T) {
		s := open(t)
		_, err := s.DeleteEdge(ctx, "nope")
		require.Error(t, err)
		assert.True(t, ir.IsNotFound(err))
	})

	t.Run("max seq", func(t *testing.T) {
		s := open(t)
		seq, err := s.MaxSeq(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), seq)

		require.NoError(t, s.PutRecord(ctx, NewRecord(t, "a", Alice, Epoch, 7)))
		require.NoError(t, s.PutEdge(ctx, NewEdge(t, ir.AnchorNode("a"), ir.AnchorNode("b"), ir.EdgeLink, nil, 4)))

		seq, err = s.MaxSeq(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), seq)
	})
}
