package thing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinglink/internal/index"
	"github.com/roach88/thinglink/internal/integrity"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/testutil"
	"github.com/roach88/thinglink/internal/thing"
)

func newChain(t *testing.T, sub store.Substrate, opts ...thing.Option) (*thing.Chain, *testutil.DeterministicClock) {
	t.Helper()
	clk := testutil.NewDeterministicClock()
	idx := index.New(sub, testutil.Alice, clk, clk)
	return thing.New(idx, testutil.Alice, clk, clk, opts...), clk
}

func contents(es []ir.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Content
	}
	return out
}

func TestCreateThenGetLatest(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		c, _ := newChain(t, sub)

		e, err := c.Create(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, e.ID, e.RecordID)
		assert.Equal(t, testutil.Alice, e.Creator)
		assert.Equal(t, testutil.Epoch, e.CreatedAt)
		assert.Nil(t, e.UpdatedAt)

		latest, err := c.GetLatest(ctx, e.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, e, *latest)
	})
}

func TestUpdateAndHistory(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		c, _ := newChain(t, sub)

		e1, err := c.Create(ctx, "hello")
		require.NoError(t, err)

		up, err := c.Update(ctx, e1.ID, "world")
		require.NoError(t, err)
		assert.Equal(t, e1.ID, up.Entity.ID)
		assert.Equal(t, "world", up.Entity.Content)
		assert.Equal(t, up.RecordRef, up.Entity.RecordID)
		assert.NotEmpty(t, up.UpdateEdgeRef)
		assert.Equal(t, e1.CreatedAt, up.Entity.CreatedAt, "creation metadata comes from the original")
		require.NotNil(t, up.Entity.UpdatedAt)
		assert.Greater(t, *up.Entity.UpdatedAt, e1.CreatedAt)

		latest, err := c.GetLatest(ctx, e1.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, up.Entity, *latest)

		original, err := c.GetOriginal(ctx, e1.ID)
		require.NoError(t, err)
		require.NotNil(t, original)
		assert.Equal(t, "hello", original.Content)
		assert.Nil(t, original.UpdatedAt)

		all, err := c.GetAllRevisions(ctx, e1.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"hello", "world"}, contents(all))
	})
}

func TestRevisionsOrderedOldestFirst(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	c, _ := newChain(t, sub)

	e, err := c.Create(ctx, "v1")
	require.NoError(t, err)
	for _, v := range []string{"v2", "v3", "v4"} {
		_, err := c.Update(ctx, e.ID, v)
		require.NoError(t, err)
	}

	all, err := c.GetAllRevisions(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v3", "v4"}, contents(all))

	latest, err := c.GetLatest(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "v4", latest.Content)
}

func TestLatestTieBreakIsGreatestRecordID(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		c, clk := newChain(t, sub)

		e, err := c.Create(ctx, "v1")
		require.NoError(t, err)

		clk.SetStep(0)
		a, err := c.Update(ctx, e.ID, "a")
		require.NoError(t, err)
		b, err := c.Update(ctx, e.ID, "b")
		require.NoError(t, err)
		require.Equal(t, *a.Entity.UpdatedAt, *b.Entity.UpdatedAt)

		want := a
		if b.RecordRef > a.RecordRef {
			want = b
		}

		for range 3 {
			latest, err := c.GetLatest(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, want.RecordRef, latest.RecordID)
		}

		all, err := c.GetAllRevisions(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, want.RecordRef, all[2].RecordID, "equal timestamps sort by record id")
	})
}

func TestRevisionOrderFollowsUpdateEdges(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		c, clk := newChain(t, sub)
		idx := index.New(sub, testutil.Alice, clk, clk)

		e, err := c.Create(ctx, "v1")
		require.NoError(t, err)

		// Record timestamps say "early" is older than "late", but "late"
		// is chained first.
		revs := map[string]ir.Record{}
		for i, content := range []string{"early", "late"} {
			r := ir.Record{
				Content:    content,
				Author:     testutil.Alice,
				CreatedAt:  e.CreatedAt + ir.Timestamp(i+1),
				Seq:        clk.Next(),
				RevisionOf: e.ID,
			}
			r.ID, err = ir.RecordID(r)
			require.NoError(t, err)
			require.NoError(t, sub.PutRecord(ctx, r))
			revs[content] = r
		}
		_, err = idx.CreateUpdateEdge(ctx, e.ID, revs["late"].ID)
		require.NoError(t, err)
		_, err = idx.CreateUpdateEdge(ctx, e.ID, revs["early"].ID)
		require.NoError(t, err)

		latest, err := c.GetLatest(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "early", latest.Content, "the last chained revision wins")

		all, err := c.GetAllRevisions(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "late", "early"}, contents(all))
		assert.Equal(t, latest.RecordID, all[len(all)-1].RecordID)
	})
}

func TestLatestFallsBackToOriginal(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	c, _ := newChain(t, sub)

	e, err := c.Create(ctx, "v1")
	require.NoError(t, err)
	up, err := c.Update(ctx, e.ID, "v2")
	require.NoError(t, err)

	require.NoError(t, sub.TombstoneRecord(ctx, up.RecordRef))

	latest, err := c.GetLatest(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "v1", latest.Content)
	assert.Nil(t, latest.UpdatedAt)

	all, err := c.GetAllRevisions(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, contents(all), "unreachable revisions are dropped")
}

func TestDeletedEntityIsGone(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
		ctx := context.Background()
		c, _ := newChain(t, sub)

		e, err := c.Create(ctx, "v1")
		require.NoError(t, err)
		up, err := c.Update(ctx, e.ID, "v2")
		require.NoError(t, err)

		require.NoError(t, c.Delete(ctx, e.ID))

		latest, err := c.GetLatest(ctx, e.ID)
		require.NoError(t, err)
		assert.Nil(t, latest)

		original, err := c.GetOriginal(ctx, e.ID)
		require.NoError(t, err)
		assert.Nil(t, original)

		_, err = c.GetAllRevisions(ctx, e.ID)
		assert.True(t, ir.IsNotFound(err))

		_, err = c.Update(ctx, e.ID, "v3")
		assert.True(t, ir.IsNotFound(err), "no transition out of the tombstoned state")

		assert.True(t, ir.IsNotFound(c.Delete(ctx, e.ID)))

		rev, err := sub.GetRecord(ctx, up.RecordRef)
		require.NoError(t, err, "revision records are not collected")
		assert.Equal(t, "v2", rev.Content)
	})
}

func TestUnknownEntity(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	c, _ := newChain(t, sub)

	latest, err := c.GetLatest(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = c.Update(ctx, "missing", "x")
	assert.True(t, ir.IsNotFound(err))

	_, err = c.Creator(ctx, "missing")
	assert.True(t, ir.IsNotFound(err))
}

func TestUpdateOfRevisionIDIsRejected(t *testing.T) {
	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	c, _ := newChain(t, sub)

	e, err := c.Create(ctx, "v1")
	require.NoError(t, err)
	up, err := c.Update(ctx, e.ID, "v2")
	require.NoError(t, err)

	_, err = c.Update(ctx, up.RecordRef, "v3")
	assert.True(t, ir.IsInvariantViolation(err))

	got, err := c.GetOriginal(ctx, up.RecordRef)
	require.NoError(t, err)
	assert.Nil(t, got, "a revision id is not an entity id")
}

func TestUpdatePartialFailure(t *testing.T) {
	faulty := testutil.NewFaultySubstrate(testutil.OpenSQLite(t))
	ctx := context.Background()
	c, _ := newChain(t, faulty)

	e, err := c.Create(ctx, "v1")
	require.NoError(t, err)

	faulty.FailAt(testutil.OpPutEdge, 1)
	_, err = c.Update(ctx, e.ID, "v2")
	require.Error(t, err)
	assert.True(t, ir.IsSubstrateError(err))

	pe, ok := ir.AsPartial(err)
	require.True(t, ok)
	require.Len(t, pe.Records, 1)

	orphan, err := faulty.GetRecord(ctx, pe.Records[0])
	require.NoError(t, err)
	assert.Equal(t, "v2", orphan.Content)

	latest, err := c.GetLatest(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", latest.Content, "an unchained revision is invisible")
}

func TestCreateChecksContentSchema(t *testing.T) {
	schema, err := integrity.CompileSchema(`#Content: { title: string }`)
	require.NoError(t, err)

	sub := testutil.OpenSQLite(t)
	ctx := context.Background()
	c, _ := newChain(t, sub, thing.WithRules(integrity.New(schema)))

	e, err := c.Create(ctx, `{"title":"ok"}`)
	require.NoError(t, err)

	_, err = c.Create(ctx, `{"title":1}`)
	assert.True(t, ir.IsInvariantViolation(err))

	_, err = c.Update(ctx, e.ID, `not json`)
	assert.True(t, ir.IsInvariantViolation(err))
}
