// Package thing manages versioned entities.
//
// An entity is named by the content address of its original record. An
// update writes a revision record (RevisionOf = entity id) and then an
// update edge id -> revision. The latest revision is the update edge
// target with the greatest timestamp; equal timestamps are broken by the
// greatest record id.
//
// Deleting an entity tombstones the original only. Revision records and
// update edges stay, but every read through the entity id reports the
// entity as gone.
package thing
