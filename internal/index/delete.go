package index

import (
	"bytes"
	"context"

	"github.com/roach88/thinglink/internal/ir"
)

// DeleteEdge deletes one physical link edge by ref.
//
// Deleting an already deleted edge reports false with no error. An unknown
// ref is NOT_FOUND and update edges are refused. The returned edge is the
// decoded view when the edge was live; its tag is zero if malformed.
func (x *Index) DeleteEdge(ctx context.Context, ref ir.Hash) (ir.Edge, bool, error) {
	rec, err := x.sub.GetEdge(ctx, ref)
	if ir.IsNotFound(err) {
		// Distinguish "already deleted" from "never existed".
		_, err := x.sub.DeleteEdge(ctx, ref)
		return ir.Edge{}, false, err
	}
	if err != nil {
		return ir.Edge{}, false, err
	}
	if err := x.rules.CheckEdgeDelete(rec); err != nil {
		return ir.Edge{}, false, err
	}

	e, decodeErr := Decode(rec)
	if decodeErr != nil {
		x.logger.Warn("deleting edge with malformed tag", "ref", ref, "error", decodeErr)
	}

	deleted, err := x.sub.DeleteEdge(ctx, ref)
	if err != nil {
		return ir.Edge{}, false, err
	}
	if deleted {
		x.logger.Debug("edge deleted", "ref", ref, "src", e.Src.String())
	}
	return e, deleted, nil
}

// DeleteRelation deletes e and its pair, if any.
//
// A forward edge names its pair through the tag backlink. An edge without
// a backlink may be the reverse half of a bidirectional relation; the
// forward half is found among its target's edges by backlink.
//
// Edges deleted before a failure are reported in an *ir.PartialError.
func (x *Index) DeleteRelation(ctx context.Context, e ir.Edge) ([]ir.Edge, error) {
	removed := []ir.Edge{}

	got, ok, err := x.DeleteEdge(ctx, e.Ref)
	if err != nil && !ir.IsNotFound(err) {
		return nil, err
	}
	if ok {
		removed = append(removed, got)
	}

	pairRef := e.Tag.Backlink
	if pairRef == "" {
		fwd, found, err := x.findForward(ctx, e)
		if err != nil {
			return nil, partial("delete_relation", err, removed)
		}
		if !found {
			return removed, nil
		}
		pairRef = fwd.Ref
	}

	pair, ok, err := x.DeleteEdge(ctx, pairRef)
	if err != nil && !ir.IsNotFound(err) {
		return nil, partial("delete_relation", err, removed)
	}
	if ok {
		removed = append(removed, pair)
	}
	return removed, nil
}

// findForward looks for the forward edge whose backlink is rev.
func (x *Index) findForward(ctx context.Context, rev ir.Edge) (ir.Edge, bool, error) {
	if rev.Dst.IsZero() || rev.Src.IsZero() {
		return ir.Edge{}, false, nil
	}
	for e, err := range x.Query(ctx, rev.Dst, ir.PartitionFor(rev.Src.Kind)) {
		if err != nil {
			return ir.Edge{}, false, err
		}
		if e.Tag.Backlink == rev.Ref && e.Target == rev.Base {
			return e, true, nil
		}
	}
	return ir.Edge{}, false, nil
}

// DeleteMatching deletes every link edge based at node in partition p
// whose view satisfies match. Paired edges are left alone. Edges with
// malformed tags are skipped.
func (x *Index) DeleteMatching(ctx context.Context, node ir.NodeRef, p ir.Partition, match func(ir.Edge) bool) ([]ir.Edge, error) {
	matched, err := x.matching(ctx, node, p, match)
	if err != nil {
		return nil, err
	}

	removed := []ir.Edge{}
	for _, e := range matched {
		got, ok, err := x.DeleteEdge(ctx, e.Ref)
		if err != nil {
			return nil, partial("delete_matching", err, removed)
		}
		if ok {
			removed = append(removed, got)
		}
	}
	return removed, nil
}

// DeleteRelations is DeleteMatching that also deletes the pair of every
// matched edge, as DeleteRelation does.
func (x *Index) DeleteRelations(ctx context.Context, node ir.NodeRef, p ir.Partition, match func(ir.Edge) bool) ([]ir.Edge, error) {
	matched, err := x.matching(ctx, node, p, match)
	if err != nil {
		return nil, err
	}

	removed := []ir.Edge{}
	for _, e := range matched {
		got, err := x.DeleteRelation(ctx, e)
		if err != nil {
			if pe, ok := ir.AsPartial(err); ok {
				removed = append(removed, pe.Removed...)
				err = pe.Err
			}
			return nil, partial("delete_relations", err, removed)
		}
		removed = append(removed, got...)
	}
	return removed, nil
}

// matching collects the edges to delete before any deletion happens.
func (x *Index) matching(ctx context.Context, node ir.NodeRef, p ir.Partition, match func(ir.Edge) bool) ([]ir.Edge, error) {
	var matched []ir.Edge
	for e, err := range x.Query(ctx, node, p) {
		if err != nil {
			return nil, err
		}
		if match(e) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// Targets returns a predicate selecting edges to target.
func Targets(target ir.Key) func(ir.Edge) bool {
	return func(e ir.Edge) bool {
		return e.Target == target
	}
}

// Matches returns a predicate selecting edges to target with the given
// user tag. A nil tag matches an absent or empty tag.
func Matches(target ir.Key, userTag []byte) func(ir.Edge) bool {
	return func(e ir.Edge) bool {
		return e.Target == target && bytes.Equal(e.Tag.UserTag, userTag)
	}
}

// partial wraps err, reporting removed as already applied. With nothing
// removed the plain error is returned.
func partial(op string, err error, removed []ir.Edge) error {
	if len(removed) == 0 {
		return err
	}
	return &ir.PartialError{Op: op, Err: err, Removed: removed}
}
