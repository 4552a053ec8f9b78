// Package integrity holds the structural rules every write must satisfy,
// plus an optional CUE schema constraining entity content.
package integrity

import (
	"github.com/roach88/thinglink/internal/ir"
)

// Rules checks writes before they reach the substrate. The zero value
// enforces the structural rules with no content schema.
type Rules struct {
	schema *ContentSchema
}

// New returns Rules enforcing schema on entity content. schema may be nil.
func New(schema *ContentSchema) *Rules {
	return &Rules{schema: schema}
}

// CheckContent validates entity content against the content schema.
func (r *Rules) CheckContent(content string) error {
	if r == nil || r.schema == nil {
		return nil
	}
	return r.schema.Validate(content)
}

// CheckTag rejects tags that cannot describe a real relation.
func (r *Rules) CheckTag(p ir.TagPayload) error {
	if ir.PartitionFor(p.Target.Kind) == 0 {
		return ir.Invariant("tag target has unknown kind %d", int(p.Target.Kind))
	}
	if p.Denormalized != nil && p.Target.Kind != ir.NodeEntity {
		return ir.Invariant("denormalized metadata on a tag targeting %s", p.Target.Kind)
	}
	return nil
}

// CheckEdgeDelete forbids deleting version chain edges.
func (r *Rules) CheckEdgeDelete(e ir.EdgeRecord) error {
	if e.Kind == ir.EdgeUpdate {
		return ir.Invariant("update edge %s cannot be deleted", e.Ref)
	}
	return nil
}

// CheckUpdate validates chaining revision onto original.
func (r *Rules) CheckUpdate(original, revision ir.Record) error {
	if !original.IsOriginal() {
		return ir.Invariant("record %s is a revision of %s, not an entity id", original.ID, original.RevisionOf)
	}
	if revision.RevisionOf != original.ID {
		return ir.Invariant("record %s does not revise %s", revision.ID, original.ID)
	}
	return nil
}
