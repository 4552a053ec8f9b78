package store

import (
	"context"
	"iter"

	"github.com/roach88/thinglink/internal/ir"
)

// Substrate is the append-only record and edge store.
//
// Failures of the backend itself are reported as ir SUBSTRATE_ERROR;
// absent records and edges as NOT_FOUND.
type Substrate interface {
	// PutRecord stores r. Writing an existing id is a no-op.
	PutRecord(ctx context.Context, r ir.Record) error

	// GetRecord fetches a live record. Tombstoned records are NOT_FOUND.
	GetRecord(ctx context.Context, id ir.Hash) (ir.Record, error)

	// TombstoneRecord marks a record deleted. It is NOT_FOUND only if the
	// record never existed; tombstoning twice is a no-op.
	TombstoneRecord(ctx context.Context, id ir.Hash) error

	// PutEdge stores e. Writing an existing ref is a no-op.
	PutEdge(ctx context.Context, e ir.EdgeRecord) error

	// GetEdge fetches a live edge. Deleted edges are NOT_FOUND.
	GetEdge(ctx context.Context, ref ir.Hash) (ir.EdgeRecord, error)

	// DeleteEdge marks an edge deleted. It reports whether this call did
	// the deletion: false means the edge was already deleted. Unknown refs
	// are NOT_FOUND.
	DeleteEdge(ctx context.Context, ref ir.Hash) (bool, error)

	// QueryEdges yields the live edges of one kind based at base in
	// partition p.
	QueryEdges(ctx context.Context, base ir.Key, p ir.Partition, k ir.EdgeKind) iter.Seq2[ir.EdgeRecord, error]

	// MaxSeq returns the highest seq stored, or 0 for an empty store.
	MaxSeq(ctx context.Context) (int64, error)

	// Close releases the backend.
	Close() error
}

// Collect drains an edge sequence into a slice, stopping at the first
// error. It returns an empty slice, not nil, when there are no edges.
func Collect(seq iter.Seq2[ir.EdgeRecord, error]) ([]ir.EdgeRecord, error) {
	out := []ir.EdgeRecord{}
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
