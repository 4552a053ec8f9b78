package graph

import (
	"context"

	"github.com/roach88/thinglink/internal/index"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/signal"
)

// Node is a linked node with its entity resolved to the latest revision.
// Entity is nil for identities and anchors.
type Node struct {
	Ref    ir.NodeRef `json:"ref"`
	Entity *ir.Entity `json:"entity,omitempty"`
}

// NodeWithLinks is a node, its content if it is an entity, and the nodes
// it links to.
type NodeWithLinks struct {
	Node    ir.NodeRef      `json:"node"`
	Content *string         `json:"content,omitempty"`
	Linked  []ir.LinkedNode `json:"linked"`
}

// CreateLinks creates one relation per spec from base, in order, and
// publishes EdgesCreated for the edges written. A failure after some
// edges were written is an *ir.PartialError.
func (g *Graph) CreateLinks(ctx context.Context, base ir.NodeRef, specs []ir.LinkSpec) ([]ir.Edge, error) {
	created, err := g.createLinks(ctx, base, specs)
	if len(created) > 0 {
		g.publish(signal.LinksCreated(created))
	}
	if err != nil {
		if len(created) == 0 {
			return nil, err
		}
		return nil, &ir.PartialError{Op: "create_links", Err: err, Created: created}
	}
	return created, nil
}

// createLinks returns the edges written and the cause of any failure.
func (g *Graph) createLinks(ctx context.Context, base ir.NodeRef, specs []ir.LinkSpec) ([]ir.Edge, error) {
	created := []ir.Edge{}
	for _, spec := range specs {
		edges, err := g.idx.CreateEdge(ctx, base, spec.Target, spec.Direction, spec.Tag)
		if err != nil {
			if pe, ok := ir.AsPartial(err); ok {
				created = append(created, pe.Created...)
				err = pe.Err
			}
			return created, err
		}
		created = append(created, edges...)
	}
	return created, nil
}

// DeleteLinks removes the relations described by specs relative to base
// and publishes EdgesDeleted for the edges removed.
//
// A To or Bidirectional spec matches edges base -> target with the spec's
// tag; a From spec matches edges target -> base. Each matched edge is
// deleted together with its bidirectional pair.
func (g *Graph) DeleteLinks(ctx context.Context, base ir.NodeRef, specs []ir.LinkSpec) ([]ir.Edge, error) {
	var removed removedSet
	for _, spec := range specs {
		err := removed.absorb(g.unlink(ctx, base, spec))
		if err != nil {
			g.publishRemoved(removed)
			if len(removed.edges) == 0 {
				return nil, err
			}
			return nil, &ir.PartialError{Op: "delete_links", Err: err, Removed: removed.edges}
		}
	}
	g.publishRemoved(removed)
	return removed.list(), nil
}

// unlink deletes the relations matching one spec relative to base.
func (g *Graph) unlink(ctx context.Context, base ir.NodeRef, spec ir.LinkSpec) ([]ir.Edge, error) {
	from, to := base, spec.Target
	if spec.Direction == ir.From {
		from, to = spec.Target, base
	} else if spec.Direction != ir.To && spec.Direction != ir.Bidirectional {
		return nil, ir.Invariant("unknown link direction %d", int(spec.Direction))
	}

	toKey, err := ir.Resolve(to)
	if err != nil {
		return nil, err
	}
	return g.idx.DeleteRelations(ctx, from, ir.PartitionFor(to.Kind), index.Matches(toKey, spec.Tag))
}

func (g *Graph) publishRemoved(removed removedSet) {
	if len(removed.edges) > 0 {
		g.publish(signal.LinksDeleted(removed.edges))
	}
}

// GetLinkedIdentities lists the identities node links to.
func (g *Graph) GetLinkedIdentities(ctx context.Context, node ir.NodeRef) ([]ir.LinkedNode, error) {
	return g.linked(ctx, node, ir.ToIdentity)
}

// GetLinkedAnchors lists the anchors node links to.
func (g *Graph) GetLinkedAnchors(ctx context.Context, node ir.NodeRef) ([]ir.LinkedNode, error) {
	return g.linked(ctx, node, ir.ToAnchor)
}

// GetLinkedEntityIDs lists the entity ids node links to.
func (g *Graph) GetLinkedEntityIDs(ctx context.Context, node ir.NodeRef) ([]ir.LinkedNode, error) {
	return g.linked(ctx, node, ir.ToEntity)
}

// GetLinkedEntities resolves each entity node links to into its latest
// revision. Deleted entities are skipped; each entity appears once.
func (g *Graph) GetLinkedEntities(ctx context.Context, node ir.NodeRef) ([]ir.Entity, error) {
	linked, err := g.linked(ctx, node, ir.ToEntity)
	if err != nil {
		return nil, err
	}
	seen := make(map[ir.Hash]bool, len(linked))
	out := []ir.Entity{}
	for _, l := range linked {
		id := ir.Hash(l.Node.ID)
		if seen[id] {
			continue
		}
		seen[id] = true
		e, err := g.things.GetLatest(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

// GetAllLinkedNodeIDs lists every node node links to: entities, then
// anchors, then identities.
func (g *Graph) GetAllLinkedNodeIDs(ctx context.Context, node ir.NodeRef) ([]ir.LinkedNode, error) {
	out := []ir.LinkedNode{}
	for _, p := range []ir.Partition{ir.ToEntity, ir.ToAnchor, ir.ToIdentity} {
		linked, err := g.linked(ctx, node, p)
		if err != nil {
			return nil, err
		}
		out = append(out, linked...)
	}
	return out, nil
}

// GetAllLinkedNodes is GetAllLinkedNodeIDs with entities resolved to their
// latest revision. Deleted entities are skipped.
func (g *Graph) GetAllLinkedNodes(ctx context.Context, node ir.NodeRef) ([]Node, error) {
	linked, err := g.GetAllLinkedNodeIDs(ctx, node)
	if err != nil {
		return nil, err
	}
	out := []Node{}
	for _, l := range linked {
		n := Node{Ref: l.Node}
		if l.Node.Kind == ir.NodeEntity {
			e, err := g.things.GetLatest(ctx, ir.Hash(l.Node.ID))
			if err != nil {
				return nil, err
			}
			if e == nil {
				continue
			}
			n.Entity = e
		}
		out = append(out, n)
	}
	return out, nil
}

// GetNodeAndLinkedIDs returns node with its latest content and the nodes it
// links to, or nil if node is an entity that is gone.
func (g *Graph) GetNodeAndLinkedIDs(ctx context.Context, node ir.NodeRef) (*NodeWithLinks, error) {
	if _, err := ir.Resolve(node); err != nil {
		return nil, err
	}
	out := &NodeWithLinks{Node: node}
	if node.Kind == ir.NodeEntity {
		e, err := g.things.GetLatest(ctx, ir.Hash(node.ID))
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, nil
		}
		out.Content = &e.Content
	}

	linked, err := g.GetAllLinkedNodeIDs(ctx, node)
	if err != nil {
		return nil, err
	}
	out.Linked = linked
	return out, nil
}

// GetNodeAndLinkedIDsBatch is GetNodeAndLinkedIDs over nodes, in input
// order.
func (g *Graph) GetNodeAndLinkedIDsBatch(ctx context.Context, nodes []ir.NodeRef) ([]*NodeWithLinks, error) {
	return batch(ctx, nodes, g.GetNodeAndLinkedIDs)
}

// linked lists the decoded link edges of node in partition p. Malformed
// edges are skipped by the index.
func (g *Graph) linked(ctx context.Context, node ir.NodeRef, p ir.Partition) ([]ir.LinkedNode, error) {
	out := []ir.LinkedNode{}
	for e, err := range g.idx.Query(ctx, node, p) {
		if err != nil {
			return nil, err
		}
		out = append(out, ir.LinkedNode{Node: e.Dst, Tag: e.Tag})
	}
	return out, nil
}

// removedSet accumulates removed edges once each, in removal order.
type removedSet struct {
	edges []ir.Edge
	seen  map[ir.Hash]bool
}

func (s *removedSet) add(edges ...ir.Edge) {
	if s.seen == nil {
		s.seen = make(map[ir.Hash]bool)
	}
	for _, e := range edges {
		if !s.seen[e.Ref] {
			s.seen[e.Ref] = true
			s.edges = append(s.edges, e)
		}
	}
}

// absorb adds the edges of a delete call, including those reported by a
// partial failure, and returns the underlying cause.
func (s *removedSet) absorb(edges []ir.Edge, err error) error {
	if pe, ok := ir.AsPartial(err); ok {
		s.add(pe.Removed...)
		return pe.Err
	}
	s.add(edges...)
	return err
}

// list returns the removed edges, never nil.
func (s *removedSet) list() []ir.Edge {
	if s.edges == nil {
		return []ir.Edge{}
	}
	return s.edges
}
