package thing

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/thinglink/internal/clock"
	"github.com/roach88/thinglink/internal/index"
	"github.com/roach88/thinglink/internal/integrity"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
)

// Chain creates, revises, reads and tombstones entities.
type Chain struct {
	sub    store.Substrate
	idx    *index.Index
	author ir.IdentityKey
	seq    clock.Sequencer
	now    clock.TimeSource
	rules  *integrity.Rules
	logger *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithRules sets the integrity rules checked before writes.
func WithRules(r *integrity.Rules) Option {
	return func(c *Chain) {
		c.rules = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = l
	}
}

// New creates a Chain writing records authored by author. Update edges go
// through idx, which must share the same substrate.
func New(idx *index.Index, author ir.IdentityKey, seq clock.Sequencer, now clock.TimeSource, opts ...Option) *Chain {
	c := &Chain{
		sub:    idx.Substrate(),
		idx:    idx,
		author: author,
		seq:    seq,
		now:    now,
		rules:  integrity.New(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update is the result of revising an entity.
type Update struct {
	Entity        ir.Entity `json:"entity"`
	RecordRef     ir.Hash   `json:"new_record_ref"`
	UpdateEdgeRef ir.Hash   `json:"update_edge_ref"`
}

// Create writes the original record of a new entity.
func (c *Chain) Create(ctx context.Context, content string) (ir.Entity, error) {
	if err := c.rules.CheckContent(content); err != nil {
		return ir.Entity{}, err
	}
	r, err := c.record(content, "")
	if err != nil {
		return ir.Entity{}, err
	}
	if err := c.sub.PutRecord(ctx, r); err != nil {
		return ir.Entity{}, err
	}
	c.logger.Debug("entity created", "id", r.ID, "seq", r.Seq)
	return ir.OriginalView(r), nil
}

// Update writes a revision of entity id and chains it with an update
// edge. The original must be live: a missing or tombstoned id is
// NOT_FOUND and nothing is written.
//
// If the update edge cannot be written the revision record is orphaned;
// the error is an *ir.PartialError naming it.
func (c *Chain) Update(ctx context.Context, id ir.Hash, content string) (Update, error) {
	original, err := c.sub.GetRecord(ctx, id)
	if err != nil {
		return Update{}, err
	}
	if err := c.rules.CheckContent(content); err != nil {
		return Update{}, err
	}
	rev, err := c.record(content, id)
	if err != nil {
		return Update{}, err
	}
	if err := c.rules.CheckUpdate(original, rev); err != nil {
		return Update{}, err
	}

	if err := c.sub.PutRecord(ctx, rev); err != nil {
		return Update{}, err
	}
	edge, err := c.idx.CreateUpdateEdge(ctx, id, rev.ID)
	if err != nil {
		return Update{}, &ir.PartialError{Op: "update_entity", Err: err, Records: []ir.Hash{rev.ID}}
	}

	c.logger.Debug("entity updated", "id", id, "record", rev.ID, "edge", edge.Ref)
	return Update{
		Entity:        ir.RevisionView(original, rev),
		RecordRef:     rev.ID,
		UpdateEdgeRef: edge.Ref,
	}, nil
}

func (c *Chain) record(content string, revisionOf ir.Hash) (ir.Record, error) {
	r := ir.Record{
		Content:    content,
		Author:     c.author,
		CreatedAt:  c.now.Now(),
		Seq:        c.seq.Next(),
		RevisionOf: revisionOf,
	}
	id, err := ir.RecordID(r)
	if err != nil {
		return ir.Record{}, err
	}
	r.ID = id
	return r, nil
}

// GetOriginal returns the original view of entity id, or nil if it does
// not exist or was deleted. Revision ids are not entity ids and yield nil.
func (c *Chain) GetOriginal(ctx context.Context, id ir.Hash) (*ir.Entity, error) {
	original, ok, err := c.original(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	e := ir.OriginalView(original)
	return &e, nil
}

// GetLatest returns the newest revision of entity id, or nil if the
// original is gone. When the newest revision cannot be fetched the
// original is returned.
func (c *Chain) GetLatest(ctx context.Context, id ir.Hash) (*ir.Entity, error) {
	original, ok, err := c.original(ctx, id)
	if err != nil || !ok {
		return nil, err
	}

	edges, err := c.idx.UpdateEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		e := ir.OriginalView(original)
		return &e, nil
	}

	latest := slices.MaxFunc(edges, compareUpdates)
	rev, err := c.revision(ctx, latest)
	if err != nil {
		if !ir.IsNotFound(err) {
			return nil, err
		}
		c.logger.Debug("latest revision unreachable, using original", "id", id, "revision", latest.Target)
		e := ir.OriginalView(original)
		return &e, nil
	}
	e := ir.RevisionView(original, rev)
	return &e, nil
}

// GetAllRevisions returns the original followed by every reachable
// revision in update edge order, so the last element is what GetLatest
// picks whenever that revision is reachable. Unreachable revisions are
// skipped. A missing or deleted entity is NOT_FOUND.
func (c *Chain) GetAllRevisions(ctx context.Context, id ir.Hash) ([]ir.Entity, error) {
	original, ok, err := c.original(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ir.NotFound(id, "entity not found")
	}

	edges, err := c.idx.UpdateEdges(ctx, id)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(edges, compareUpdates)
	revs := make([]ir.Record, 0, len(edges))
	for _, e := range edges {
		rev, err := c.revision(ctx, e)
		if ir.IsNotFound(err) {
			c.logger.Debug("skipping unreachable revision", "id", id, "revision", e.Target)
			continue
		}
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}

	out := make([]ir.Entity, 0, len(revs)+1)
	out = append(out, ir.OriginalView(original))
	for _, rev := range revs {
		out = append(out, ir.RevisionView(original, rev))
	}
	return out, nil
}

// Delete tombstones the original record of entity id.
func (c *Chain) Delete(ctx context.Context, id ir.Hash) error {
	if _, ok, err := c.original(ctx, id); err != nil {
		return err
	} else if !ok {
		return ir.NotFound(id, "entity not found")
	}
	if err := c.sub.TombstoneRecord(ctx, id); err != nil {
		return err
	}
	c.logger.Debug("entity tombstoned", "id", id)
	return nil
}

// Creator returns the author of entity id's original record.
func (c *Chain) Creator(ctx context.Context, id ir.Hash) (ir.IdentityKey, error) {
	original, ok, err := c.original(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ir.NotFound(id, "entity not found")
	}
	return original.Author, nil
}

// original fetches the live original record of id. ok is false when the
// record is absent, tombstoned or a revision.
func (c *Chain) original(ctx context.Context, id ir.Hash) (ir.Record, bool, error) {
	r, err := c.sub.GetRecord(ctx, id)
	if ir.IsNotFound(err) {
		return ir.Record{}, false, nil
	}
	if err != nil {
		return ir.Record{}, false, err
	}
	if !r.IsOriginal() {
		return ir.Record{}, false, nil
	}
	return r, true, nil
}

// revision fetches the record an update edge points at. A target that is
// not an entity key is NOT_FOUND.
func (c *Chain) revision(ctx context.Context, e ir.EdgeRecord) (ir.Record, error) {
	id, ok := e.Target.EntityID()
	if !ok {
		return ir.Record{}, ir.NotFound(ir.Hash(e.Target), "update edge target is not an entity")
	}
	return c.sub.GetRecord(ctx, id)
}

// compareUpdates orders update edges by the edge timestamp, then target
// key. Both GetLatest and GetAllRevisions rank revisions with it.
func compareUpdates(a, b ir.EdgeRecord) int {
	return cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), cmp.Compare(a.Target, b.Target))
}
