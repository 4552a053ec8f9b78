// Package kvstore is a Badger implementation of the record/edge substrate.
//
// Records and edges are stored as msgpack values under single-byte key
// prefixes, with a secondary index per (base, partition, kind) that makes
// edge queries a prefix scan.
package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
)

type recordValue struct {
	Content    string `msgpack:"content"`
	Author     string `msgpack:"author"`
	CreatedAt  int64  `msgpack:"created_at"`
	Seq        int64  `msgpack:"seq"`
	RevisionOf string `msgpack:"revision_of"`
	Tombstoned bool   `msgpack:"tombstoned"`
}

type edgeValue struct {
	Base      string `msgpack:"base"`
	BaseKind  int    `msgpack:"base_kind"`
	BaseID    string `msgpack:"base_id"`
	Target    string `msgpack:"target"`
	Partition int    `msgpack:"partition"`
	Kind      int    `msgpack:"kind"`
	Tag       []byte `msgpack:"tag"`
	Author    string `msgpack:"author"`
	CreatedAt int64  `msgpack:"created_at"`
	Seq       int64  `msgpack:"seq"`
	Deleted   bool   `msgpack:"deleted"`
}

// Store is the Badger Substrate.
type Store struct {
	db *badger.DB
	gc *gcRunner
}

var _ store.Substrate = (*Store)(nil)

// Open opens a Badger database with the given configuration, creating the
// directory if needed, and starts value log GC if configured.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}
	return s, nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
		s.gc = nil
	}
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

// PutRecord stores r unless a record with the same id exists.
func (s *Store) PutRecord(ctx context.Context, r ir.Record) error {
	if err := ctx.Err(); err != nil {
		return ir.Substrate("put record", err)
	}
	val, err := msgpack.Marshal(recordValue{
		Content:    r.Content,
		Author:     string(r.Author),
		CreatedAt:  int64(r.CreatedAt),
		Seq:        r.Seq,
		RevisionOf: string(r.RevisionOf),
	})
	if err != nil {
		return ir.Substrate("put record", err)
	}

	err = s.update(func(txn *badger.Txn) error {
		key := recordKey(r.ID)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, val); err != nil {
			return err
		}
		return bumpMaxSeq(txn, r.Seq)
	})
	return ir.Substrate("put record", err)
}

// GetRecord fetches a live record.
func (s *Store) GetRecord(ctx context.Context, id ir.Hash) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return ir.Record{}, ir.Substrate("get record", err)
	}
	var v recordValue
	err := s.db.View(func(txn *badger.Txn) error {
		return getValue(txn, recordKey(id), &v)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ir.Record{}, ir.NotFound(id, "record not found")
	}
	if err != nil {
		return ir.Record{}, ir.Substrate("get record", err)
	}
	if v.Tombstoned {
		return ir.Record{}, ir.NotFound(id, "record tombstoned")
	}
	return ir.Record{
		ID:         id,
		Content:    v.Content,
		Author:     ir.IdentityKey(v.Author),
		CreatedAt:  ir.Timestamp(v.CreatedAt),
		Seq:        v.Seq,
		RevisionOf: ir.Hash(v.RevisionOf),
	}, nil
}

// TombstoneRecord marks a record deleted.
func (s *Store) TombstoneRecord(ctx context.Context, id ir.Hash) error {
	if err := ctx.Err(); err != nil {
		return ir.Substrate("tombstone record", err)
	}
	err := s.update(func(txn *badger.Txn) error {
		var v recordValue
		if err := getValue(txn, recordKey(id), &v); err != nil {
			return err
		}
		if v.Tombstoned {
			return nil
		}
		v.Tombstoned = true
		return setValue(txn, recordKey(id), v)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ir.NotFound(id, "record not found")
	}
	return ir.Substrate("tombstone record", err)
}

// PutEdge stores e and indexes it, unless an edge with the same ref exists.
func (s *Store) PutEdge(ctx context.Context, e ir.EdgeRecord) error {
	if err := ctx.Err(); err != nil {
		return ir.Substrate("put edge", err)
	}
	tag := e.Tag
	if tag == nil {
		tag = []byte{}
	}
	v := edgeValue{
		Base:      string(e.Base),
		BaseKind:  int(e.BaseNode.Kind),
		BaseID:    e.BaseNode.ID,
		Target:    string(e.Target),
		Partition: int(e.Partition),
		Kind:      int(e.Kind),
		Tag:       tag,
		Author:    string(e.Author),
		CreatedAt: int64(e.CreatedAt),
		Seq:       e.Seq,
	}

	err := s.update(func(txn *badger.Txn) error {
		key := edgeKey(e.Ref)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setValue(txn, key, v); err != nil {
			return err
		}
		if err := txn.Set(indexKey(e), []byte{}); err != nil {
			return err
		}
		return bumpMaxSeq(txn, e.Seq)
	})
	return ir.Substrate("put edge", err)
}

// GetEdge fetches a live edge.
func (s *Store) GetEdge(ctx context.Context, ref ir.Hash) (ir.EdgeRecord, error) {
	if err := ctx.Err(); err != nil {
		return ir.EdgeRecord{}, ir.Substrate("get edge", err)
	}
	var v edgeValue
	err := s.db.View(func(txn *badger.Txn) error {
		return getValue(txn, edgeKey(ref), &v)
	})
	if errors.Is(err, badger.ErrKeyNotFound) || (err == nil && v.Deleted) {
		return ir.EdgeRecord{}, ir.NotFound(ref, "edge not found")
	}
	if err != nil {
		return ir.EdgeRecord{}, ir.Substrate("get edge", err)
	}
	return v.record(ref), nil
}

// DeleteEdge marks an edge deleted and drops it from the index.
func (s *Store) DeleteEdge(ctx context.Context, ref ir.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, ir.Substrate("delete edge", err)
	}
	removed := false
	err := s.update(func(txn *badger.Txn) error {
		var v edgeValue
		if err := getValue(txn, edgeKey(ref), &v); err != nil {
			return err
		}
		if v.Deleted {
			return nil
		}
		v.Deleted = true
		if err := setValue(txn, edgeKey(ref), v); err != nil {
			return err
		}
		if err := txn.Delete(indexKey(v.record(ref))); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, ir.NotFound(ref, "edge not found")
	}
	if err != nil {
		return false, ir.Substrate("delete edge", err)
	}
	return removed, nil
}

// QueryEdges yields live edges based at base, in (seq, ref) order.
// The scan completes inside one read transaction before the first yield.
func (s *Store) QueryEdges(ctx context.Context, base ir.Key, p ir.Partition, k ir.EdgeKind) iter.Seq2[ir.EdgeRecord, error] {
	return func(yield func(ir.EdgeRecord, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(ir.EdgeRecord{}, ir.Substrate("query edges", err))
			return
		}
		edges, err := s.scan(base, p, k)
		if err != nil {
			yield(ir.EdgeRecord{}, ir.Substrate("query edges", err))
			return
		}
		for _, e := range edges {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *Store) scan(base ir.Key, p ir.Partition, k ir.EdgeKind) ([]ir.EdgeRecord, error) {
	prefix := indexPrefix(base, p, k)
	edges := []ir.EdgeRecord{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ref := refFromIndexKey(it.Item().KeyCopy(nil), len(prefix))
			var v edgeValue
			if err := getValue(txn, edgeKey(ref), &v); err != nil {
				return fmt.Errorf("index entry %s: %w", ref, err)
			}
			edges = append(edges, v.record(ref))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// MaxSeq returns the highest seq written.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, ir.Substrate("max seq", err)
	}
	var seq int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		seq, err = readMaxSeq(txn)
		return err
	})
	if err != nil {
		return 0, ir.Substrate("max seq", err)
	}
	return seq, nil
}

func (v edgeValue) record(ref ir.Hash) ir.EdgeRecord {
	return ir.EdgeRecord{
		Ref:       ref,
		Base:      ir.Key(v.Base),
		BaseNode:  ir.NodeRef{Kind: ir.NodeKind(v.BaseKind), ID: v.BaseID},
		Target:    ir.Key(v.Target),
		Partition: ir.Partition(v.Partition),
		Kind:      ir.EdgeKind(v.Kind),
		Tag:       v.Tag,
		Author:    ir.IdentityKey(v.Author),
		CreatedAt: ir.Timestamp(v.CreatedAt),
		Seq:       v.Seq,
	}
}

// maxConflictRetries bounds retries of a write transaction that lost a
// conflict on the shared max seq key.
const maxConflictRetries = 3

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getValue(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, out)
	})
}

func setValue(txn *badger.Txn, key []byte, v any) error {
	val, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, val)
}

func readMaxSeq(txn *badger.Txn) (int64, error) {
	item, err := txn.Get(maxSeqKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("max seq: corrupt value of %d bytes", len(val))
		}
		seq = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return seq, err
}

func bumpMaxSeq(txn *badger.Txn, seq int64) error {
	current, err := readMaxSeq(txn)
	if err != nil {
		return err
	}
	if seq <= current {
		return nil
	}
	return txn.Set(maxSeqKey, binary.BigEndian.AppendUint64(nil, uint64(seq)))
}
