package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/thinglink/internal/ir"
)

// GetRecord fetches a live record by id.
func (s *Store) GetRecord(ctx context.Context, id ir.Hash) (ir.Record, error) {
	var (
		r                  ir.Record
		rid, author, revOf string
		createdAt          int64
		tombstoned         int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, author, created_at, seq, revision_of, tombstoned
		FROM records
		WHERE id = ?
	`, string(id)).Scan(&rid, &r.Content, &author, &createdAt, &r.Seq, &revOf, &tombstoned)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, ir.NotFound(id, "record not found")
	}
	if err != nil {
		return ir.Record{}, ir.Substrate("get record", err)
	}
	if tombstoned != 0 {
		return ir.Record{}, ir.NotFound(id, "record tombstoned")
	}

	r.ID = ir.Hash(rid)
	r.Author = ir.IdentityKey(author)
	r.CreatedAt = ir.Timestamp(createdAt)
	r.RevisionOf = ir.Hash(revOf)
	return r, nil
}

// GetEdge fetches a live edge by ref.
func (s *Store) GetEdge(ctx context.Context, ref ir.Hash) (ir.EdgeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ref, base, base_kind, base_id, target, part, kind, tag, author, created_at, seq
		FROM edges
		WHERE ref = ? AND deleted = 0
	`, string(ref))

	e, err := scanEdge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.EdgeRecord{}, ir.NotFound(ref, "edge not found")
	}
	if err != nil {
		return ir.EdgeRecord{}, ir.Substrate("get edge", err)
	}
	return e, nil
}

// QueryEdges yields live edges based at base.
// Ordered deterministically: ORDER BY seq ASC, ref COLLATE BINARY ASC.
//
// Rows are read fully before the first yield so the single connection is
// free while the caller acts on each edge.
func (s *Store) QueryEdges(ctx context.Context, base ir.Key, p ir.Partition, k ir.EdgeKind) iter.Seq2[ir.EdgeRecord, error] {
	return func(yield func(ir.EdgeRecord, error) bool) {
		edges, err := s.readEdges(ctx, base, p, k)
		if err != nil {
			yield(ir.EdgeRecord{}, err)
			return
		}
		for _, e := range edges {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *Store) readEdges(ctx context.Context, base ir.Key, p ir.Partition, k ir.EdgeKind) ([]ir.EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref, base, base_kind, base_id, target, part, kind, tag, author, created_at, seq
		FROM edges
		WHERE base = ? AND part = ? AND kind = ? AND deleted = 0
		ORDER BY seq ASC, ref COLLATE BINARY ASC
	`, string(base), int(p), int(k))
	if err != nil {
		return nil, ir.Substrate("query edges", err)
	}
	defer rows.Close()

	edges := []ir.EdgeRecord{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, ir.Substrate("query edges", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ir.Substrate("query edges", fmt.Errorf("iterate edges: %w", err))
	}
	return edges, nil
}

// MaxSeq returns the highest seq across records and edges.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM records
			UNION ALL
			SELECT seq FROM edges
		)
	`).Scan(&seq)
	if err != nil {
		return 0, ir.Substrate("max seq", err)
	}
	return seq, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdge(row rowScanner) (ir.EdgeRecord, error) {
	var (
		e                               ir.EdgeRecord
		ref, base, baseID, target, auth string
		baseKind, part, kind            int
		createdAt                       int64
	)
	if err := row.Scan(&ref, &base, &baseKind, &baseID, &target, &part, &kind, &e.Tag, &auth, &createdAt, &e.Seq); err != nil {
		return ir.EdgeRecord{}, err
	}
	e.Ref = ir.Hash(ref)
	e.Base = ir.Key(base)
	e.BaseNode = ir.NodeRef{Kind: ir.NodeKind(baseKind), ID: baseID}
	e.Target = ir.Key(target)
	e.Partition = ir.Partition(part)
	e.Kind = ir.EdgeKind(kind)
	e.Author = ir.IdentityKey(auth)
	e.CreatedAt = ir.Timestamp(createdAt)
	if e.Tag == nil {
		e.Tag = []byte{}
	}
	return e, nil
}
