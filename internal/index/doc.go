// Package index realizes typed, tagged, directed edges on top of the
// record/edge substrate.
//
// Edges are stored under their base's canonical key, partitioned by the
// kind of their target. Link edges carry an encoded ir.TagPayload; update
// edges (the version chain) carry an empty tag.
//
// A bidirectional relation is two physical edges: the reverse edge
// target -> base is written first, then the forward edge base -> target
// whose tag holds the reverse edge's ref as its backlink. Either edge can
// find its pair: the forward edge directly through the backlink, the
// reverse edge by scanning its target's edges for that backlink.
//
// Multi-write operations are not atomic. When a later write fails the
// error is an *ir.PartialError listing what was applied.
package index
