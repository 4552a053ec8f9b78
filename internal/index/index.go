package index

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/thinglink/internal/clock"
	"github.com/roach88/thinglink/internal/integrity"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/tag"
)

// Index creates, queries and deletes edges.
type Index struct {
	sub    store.Substrate
	author ir.IdentityKey
	seq    clock.Sequencer
	now    clock.TimeSource
	rules  *integrity.Rules
	logger *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithRules sets the integrity rules checked before writes.
func WithRules(r *integrity.Rules) Option {
	return func(x *Index) {
		x.rules = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(x *Index) {
		x.logger = l
	}
}

// New creates an Index writing edges authored by author.
func New(sub store.Substrate, author ir.IdentityKey, seq clock.Sequencer, now clock.TimeSource, opts ...Option) *Index {
	x := &Index{
		sub:    sub,
		author: author,
		seq:    seq,
		now:    now,
		rules:  integrity.New(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Substrate returns the underlying store.
func (x *Index) Substrate() store.Substrate {
	return x.sub
}

// pending is an edge built and addressed but not yet written.
type pending struct {
	rec     ir.EdgeRecord
	payload ir.TagPayload
}

// CreateEdge writes the physical edges for one relation between base and
// target and returns them in write order.
//
//   - To: base -> target
//   - From: target -> base
//   - Bidirectional: target -> base, then base -> target with a backlink
//
// Entity endpoints on either side are fetched first; if one is missing or
// tombstoned nothing is written and the error is NOT_FOUND. If the second
// write of a bidirectional relation fails, the error is an
// *ir.PartialError whose Created holds the reverse edge.
func (x *Index) CreateEdge(ctx context.Context, base, target ir.NodeRef, dir ir.LinkDirection, userTag []byte) ([]ir.Edge, error) {
	if dir != ir.To && dir != ir.From && dir != ir.Bidirectional {
		return nil, ir.Invariant("unknown link direction %d", int(dir))
	}
	b, err := x.resolveEndpoint(ctx, base)
	if err != nil {
		return nil, err
	}
	t, err := x.resolveEndpoint(ctx, target)
	if err != nil {
		return nil, err
	}

	switch dir {
	case ir.To:
		p, err := x.prepare(b, t, userTag, "")
		if err != nil {
			return nil, err
		}
		return x.write(ctx, p)

	case ir.From:
		p, err := x.prepare(t, b, userTag, "")
		if err != nil {
			return nil, err
		}
		return x.write(ctx, p)

	default:
		back, err := x.prepare(t, b, userTag, "")
		if err != nil {
			return nil, err
		}
		fwd, err := x.prepare(b, t, userTag, back.rec.Ref)
		if err != nil {
			return nil, err
		}
		return x.write(ctx, back, fwd)
	}
}

// endpoint is a resolved node, with creation metadata when it is an
// entity.
type endpoint struct {
	ref  ir.NodeRef
	key  ir.Key
	meta *ir.EntityMeta
}

// resolveEndpoint resolves n. An entity must be a live original record.
func (x *Index) resolveEndpoint(ctx context.Context, n ir.NodeRef) (endpoint, error) {
	key, err := ir.Resolve(n)
	if err != nil {
		return endpoint{}, err
	}
	ep := endpoint{ref: n, key: key}
	if n.Kind == ir.NodeEntity {
		meta, err := x.entityMeta(ctx, ir.Hash(n.ID))
		if err != nil {
			return endpoint{}, err
		}
		ep.meta = &meta
	}
	return ep, nil
}

// prepare builds the addressed edge src -> dst.
func (x *Index) prepare(src, dst endpoint, userTag []byte, backlink ir.Hash) (pending, error) {
	payload := ir.TagPayload{UserTag: userTag, Backlink: backlink, Target: dst.ref, Denormalized: dst.meta}
	if err := x.rules.CheckTag(payload); err != nil {
		return pending{}, err
	}

	encoded, err := tag.Encode(payload)
	if err != nil {
		return pending{}, err
	}

	rec := ir.EdgeRecord{
		Base:      src.key,
		BaseNode:  src.ref,
		Target:    dst.key,
		Partition: ir.PartitionFor(dst.ref.Kind),
		Kind:      ir.EdgeLink,
		Tag:       encoded,
		Author:    x.author,
		CreatedAt: x.now.Now(),
		Seq:       x.seq.Next(),
	}
	if rec.Ref, err = ir.EdgeRef(rec); err != nil {
		return pending{}, err
	}
	return pending{rec: rec, payload: payload}, nil
}

// entityMeta fetches the creation metadata of an entity id. Tombstoned
// entities are NOT_FOUND.
func (x *Index) entityMeta(ctx context.Context, id ir.Hash) (ir.EntityMeta, error) {
	r, err := x.sub.GetRecord(ctx, id)
	if err != nil {
		return ir.EntityMeta{}, fmt.Errorf("link endpoint %s: %w", id, err)
	}
	if !r.IsOriginal() {
		return ir.EntityMeta{}, ir.Invariant("link endpoint %s is a revision of %s, not an entity id", id, r.RevisionOf)
	}
	return ir.EntityMeta{CreatedAt: r.CreatedAt, Creator: r.Author}, nil
}

// write stores edges in order. A failure after the first write is
// reported as a PartialError.
func (x *Index) write(ctx context.Context, edges ...pending) ([]ir.Edge, error) {
	created := make([]ir.Edge, 0, len(edges))
	for _, p := range edges {
		if err := x.sub.PutEdge(ctx, p.rec); err != nil {
			if len(created) == 0 {
				return nil, err
			}
			return nil, &ir.PartialError{Op: "create_edge", Err: err, Created: created}
		}
		created = append(created, edgeOf(p.rec, p.payload))
		x.logger.Debug("edge created",
			"ref", p.rec.Ref,
			"src", p.rec.BaseNode.String(),
			"dst", p.payload.Target.String(),
			"backlink", p.payload.Backlink)
	}
	return created, nil
}

// Query yields the link edges based at node in partition p.
//
// Edges whose tags fail to decode are logged and skipped so that one
// corrupt edge cannot hide the rest. Order is unspecified.
func (x *Index) Query(ctx context.Context, node ir.NodeRef, p ir.Partition) iter.Seq2[ir.Edge, error] {
	return func(yield func(ir.Edge, error) bool) {
		for e, err := range x.QueryStrict(ctx, node, p) {
			if ir.IsDecodeError(err) {
				x.logger.Warn("skipping edge with malformed tag", "node", node.String(), "partition", p.String(), "error", err)
				continue
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// QueryStrict is Query without filtering: a malformed tag is yielded as a
// DECODE_ERROR and iteration continues.
func (x *Index) QueryStrict(ctx context.Context, node ir.NodeRef, p ir.Partition) iter.Seq2[ir.Edge, error] {
	return func(yield func(ir.Edge, error) bool) {
		key, err := ir.Resolve(node)
		if err != nil {
			yield(ir.Edge{}, err)
			return
		}
		for rec, err := range x.sub.QueryEdges(ctx, key, p, ir.EdgeLink) {
			if err != nil {
				yield(ir.Edge{}, err)
				return
			}
			e, err := Decode(rec)
			if !yield(e, err) {
				return
			}
		}
	}
}

// Decode builds the logical view of a link edge. On a malformed tag the
// returned edge still carries the physical fields and RawTag.
func Decode(rec ir.EdgeRecord) (ir.Edge, error) {
	payload, err := tag.Decode(rec.Tag)
	if err != nil {
		e := edgeOf(rec, ir.TagPayload{})
		return e, fmt.Errorf("edge %s: %w", rec.Ref, err)
	}
	return edgeOf(rec, payload), nil
}

func edgeOf(rec ir.EdgeRecord, payload ir.TagPayload) ir.Edge {
	return ir.Edge{
		Ref:       rec.Ref,
		Src:       rec.BaseNode,
		Dst:       payload.Target,
		Base:      rec.Base,
		Target:    rec.Target,
		Partition: rec.Partition,
		Kind:      rec.Kind,
		Tag:       payload,
		RawTag:    rec.Tag,
		CreatedAt: rec.CreatedAt,
	}
}
