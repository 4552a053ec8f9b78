package index

import (
	"context"

	"github.com/roach88/thinglink/internal/ir"
)

// CreateUpdateEdge chains revision onto the entity id. Update edges carry
// an empty tag and live in the to_entity partition.
func (x *Index) CreateUpdateEdge(ctx context.Context, id, revision ir.Hash) (ir.EdgeRecord, error) {
	base := ir.EntityNode(id)
	baseKey, err := ir.Resolve(base)
	if err != nil {
		return ir.EdgeRecord{}, err
	}
	targetKey, err := ir.Resolve(ir.EntityNode(revision))
	if err != nil {
		return ir.EdgeRecord{}, err
	}

	rec := ir.EdgeRecord{
		Base:      baseKey,
		BaseNode:  base,
		Target:    targetKey,
		Partition: ir.ToEntity,
		Kind:      ir.EdgeUpdate,
		Tag:       []byte{},
		Author:    x.author,
		CreatedAt: x.now.Now(),
		Seq:       x.seq.Next(),
	}
	if rec.Ref, err = ir.EdgeRef(rec); err != nil {
		return ir.EdgeRecord{}, err
	}
	if err := x.sub.PutEdge(ctx, rec); err != nil {
		return ir.EdgeRecord{}, err
	}
	x.logger.Debug("update edge created", "entity", id, "revision", revision, "ref", rec.Ref)
	return rec, nil
}

// UpdateEdges returns the version chain edges of entity id.
func (x *Index) UpdateEdges(ctx context.Context, id ir.Hash) ([]ir.EdgeRecord, error) {
	key, err := ir.Resolve(ir.EntityNode(id))
	if err != nil {
		return nil, err
	}
	var out []ir.EdgeRecord
	for rec, err := range x.sub.QueryEdges(ctx, key, ir.ToEntity, ir.EdgeUpdate) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
