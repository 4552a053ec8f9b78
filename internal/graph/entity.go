package graph

import (
	"context"

	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/signal"
	"github.com/roach88/thinglink/internal/thing"
)

// CreateEntity creates an entity and then the links from it.
//
// EntityCreated is published first, then EdgesCreated for the links. If a
// link fails the entity still exists: the error is an *ir.PartialError
// naming the entity record and the edges that were written, and the
// returned entity is valid.
func (g *Graph) CreateEntity(ctx context.Context, content string, links []ir.LinkSpec) (ir.Entity, error) {
	e, err := g.things.Create(ctx, content)
	if err != nil {
		return ir.Entity{}, err
	}
	g.publish(signal.Created(e))

	if len(links) == 0 {
		return e, nil
	}
	created, err := g.createLinks(ctx, ir.EntityNode(e.ID), links)
	if len(created) > 0 {
		g.publish(signal.LinksCreated(created))
	}
	if err != nil {
		return e, &ir.PartialError{Op: "create_entity", Err: err, Created: created, Records: []ir.Hash{e.ID}}
	}
	return e, nil
}

// UpdateEntity writes a new revision of entity id.
func (g *Graph) UpdateEntity(ctx context.Context, id ir.Hash, content string) (thing.Update, error) {
	up, err := g.things.Update(ctx, id, content)
	if err != nil {
		return thing.Update{}, err
	}
	g.publish(signal.Updated(up.Entity, up.RecordRef, up.UpdateEdgeRef))
	return up, nil
}

// GetLatest returns the newest revision of entity id, or nil if it is gone.
func (g *Graph) GetLatest(ctx context.Context, id ir.Hash) (*ir.Entity, error) {
	return g.things.GetLatest(ctx, id)
}

// GetOriginal returns entity id as first created, or nil if it is gone.
func (g *Graph) GetOriginal(ctx context.Context, id ir.Hash) (*ir.Entity, error) {
	return g.things.GetOriginal(ctx, id)
}

// GetAllRevisions returns the original and every reachable revision of
// entity id, oldest first.
func (g *Graph) GetAllRevisions(ctx context.Context, id ir.Hash) ([]ir.Entity, error) {
	return g.things.GetAllRevisions(ctx, id)
}

// GetLatestBatch is GetLatest over ids, in input order.
func (g *Graph) GetLatestBatch(ctx context.Context, ids []ir.Hash) ([]*ir.Entity, error) {
	return batch(ctx, ids, g.things.GetLatest)
}

// GetOriginalBatch is GetOriginal over ids, in input order.
func (g *Graph) GetOriginalBatch(ctx context.Context, ids []ir.Hash) ([]*ir.Entity, error) {
	return batch(ctx, ids, g.things.GetOriginal)
}

// GetAllRevisionsBatch is GetAllRevisions over ids, in input order. A
// missing entity yields a nil entry rather than an error.
func (g *Graph) GetAllRevisionsBatch(ctx context.Context, ids []ir.Hash) ([][]ir.Entity, error) {
	return batch(ctx, ids, func(ctx context.Context, id ir.Hash) ([]ir.Entity, error) {
		revs, err := g.things.GetAllRevisions(ctx, id)
		if ir.IsNotFound(err) {
			return nil, nil
		}
		return revs, err
	})
}

// batch applies get to each key, stopping at the first error.
func batch[K, V any](ctx context.Context, keys []K, get func(context.Context, K) (V, error)) ([]V, error) {
	out := make([]V, len(keys))
	for i, k := range keys {
		v, err := get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
