package graph

import (
	"context"

	"github.com/roach88/thinglink/internal/index"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/signal"
)

// DeleteOptions selects which edges DeleteEntity removes besides
// tombstoning the entity.
type DeleteOptions struct {
	// DeleteBacklinks removes the reverse half of every bidirectional
	// relation created from the entity. Outward edges stay: a tombstoned
	// entity is no longer a traversal root.
	DeleteBacklinks bool `json:"delete_backlinks" yaml:"delete_backlinks"`

	// DeleteLinksFromCreator removes edges from the entity's creator
	// identity to the entity.
	DeleteLinksFromCreator bool `json:"delete_links_from_creator" yaml:"delete_links_from_creator"`

	// Explicit lists further relations to remove, relative to the entity.
	Explicit []ir.LinkSpec `json:"explicit,omitempty" yaml:"-"`
}

// DeleteEntity tombstones entity id and removes the edges opts selects,
// returning each removed edge once.
//
// A missing entity is NOT_FOUND with nothing changed. Any later failure
// is an *ir.PartialError listing the tombstoned record and the edges
// already removed; EntityDeleted and EdgesDeleted are published either
// way.
func (g *Graph) DeleteEntity(ctx context.Context, id ir.Hash, opts DeleteOptions) ([]ir.Edge, error) {
	creator, err := g.things.Creator(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := g.things.Delete(ctx, id); err != nil {
		return nil, err
	}

	var removed removedSet
	err = g.cascade(ctx, id, creator, opts, &removed)

	g.publish(signal.Deleted(id))
	g.publishRemoved(removed)

	if err != nil {
		return nil, &ir.PartialError{Op: "delete_entity", Err: err, Removed: removed.edges, Records: []ir.Hash{id}}
	}
	g.logger.Debug("entity deleted", "id", id, "edges_removed", len(removed.edges))
	return removed.list(), nil
}

func (g *Graph) cascade(ctx context.Context, id ir.Hash, creator ir.IdentityKey, opts DeleteOptions, removed *removedSet) error {
	node := ir.EntityNode(id)
	key, err := ir.Resolve(node)
	if err != nil {
		return err
	}

	if opts.DeleteBacklinks {
		if err := g.deleteBacklinks(ctx, node, removed); err != nil {
			return err
		}
	}

	if opts.DeleteLinksFromCreator {
		err := removed.absorb(g.idx.DeleteMatching(ctx, ir.IdentityNode(creator), ir.ToEntity, index.Targets(key)))
		if err != nil {
			return err
		}
	}

	for _, spec := range opts.Explicit {
		var err error
		if spec.Direction == ir.From {
			err = removed.absorb(g.idx.DeleteMatching(ctx, spec.Target, ir.ToEntity, index.Targets(key)))
		} else {
			err = removed.absorb(g.unlink(ctx, node, spec))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteBacklinks deletes the edge named by the backlink of every edge
// based at node.
func (g *Graph) deleteBacklinks(ctx context.Context, node ir.NodeRef, removed *removedSet) error {
	var backlinks []ir.Hash
	for _, p := range ir.Partitions {
		for e, err := range g.idx.Query(ctx, node, p) {
			if err != nil {
				return err
			}
			if e.Tag.Backlink != "" {
				backlinks = append(backlinks, e.Tag.Backlink)
			}
		}
	}

	for _, ref := range backlinks {
		e, ok, err := g.idx.DeleteEdge(ctx, ref)
		if ir.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if ok {
			removed.add(e)
		}
	}
	return nil
}
