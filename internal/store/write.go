package store

import (
	"context"
	"fmt"

	"github.com/roach88/thinglink/internal/ir"
)

// PutRecord inserts an entity record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored, including for tombstoned records.
func (s *Store) PutRecord(ctx context.Context, r ir.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, content, author, created_at, seq, revision_of)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		string(r.ID),
		r.Content,
		string(r.Author),
		int64(r.CreatedAt),
		r.Seq,
		string(r.RevisionOf),
	)
	if err != nil {
		return ir.Substrate("put record", err)
	}
	return nil
}

// TombstoneRecord marks a record deleted.
func (s *Store) TombstoneRecord(ctx context.Context, id ir.Hash) error {
	res, err := s.db.ExecContext(ctx, `UPDATE records SET tombstoned = 1 WHERE id = ?`, string(id))
	if err != nil {
		return ir.Substrate("tombstone record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ir.Substrate("tombstone record", err)
	}
	if n == 0 {
		return ir.NotFound(id, "record not found")
	}
	return nil
}

// PutEdge inserts a physical edge.
// Uses ON CONFLICT(ref) DO NOTHING for idempotency.
func (s *Store) PutEdge(ctx context.Context, e ir.EdgeRecord) error {
	tag := e.Tag
	if tag == nil {
		tag = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges
		(ref, base, base_kind, base_id, target, part, kind, tag, author, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO NOTHING
	`,
		string(e.Ref),
		string(e.Base),
		int(e.BaseNode.Kind),
		e.BaseNode.ID,
		string(e.Target),
		int(e.Partition),
		int(e.Kind),
		tag,
		string(e.Author),
		int64(e.CreatedAt),
		e.Seq,
	)
	if err != nil {
		return ir.Substrate("put edge", err)
	}
	return nil
}

// DeleteEdge marks an edge deleted.
func (s *Store) DeleteEdge(ctx context.Context, ref ir.Hash) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE edges SET deleted = 1 WHERE ref = ? AND deleted = 0`, string(ref))
	if err != nil {
		return false, ir.Substrate("delete edge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ir.Substrate("delete edge", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE ref = ?`, string(ref)).Scan(&exists)
	if err != nil {
		return false, ir.Substrate("delete edge", fmt.Errorf("check existence: %w", err))
	}
	if exists == 0 {
		return false, ir.NotFound(ref, "edge not found")
	}
	return false, nil
}
