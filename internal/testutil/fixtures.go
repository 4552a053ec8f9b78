package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/store/kvstore"
)

// Alice and Bob are fixed identity keys for tests.
const (
	Alice ir.IdentityKey = "ed25519:a11ce0000000000000000000000000000000000000000000000000000000a11c"
	Bob   ir.IdentityKey = "ed25519:b0b0000000000000000000000000000000000000000000000000000000000b0b"
)

// NewRecord builds a record with its content address filled in.
func NewRecord(t testing.TB, content string, author ir.IdentityKey, createdAt ir.Timestamp, seq int64) ir.Record {
	t.Helper()
	r := ir.Record{Content: content, Author: author, CreatedAt: createdAt, Seq: seq}
	id, err := ir.RecordID(r)
	require.NoError(t, err)
	r.ID = id
	return r
}

// NewEdge builds an edge record from base to target with its ref filled in.
func NewEdge(t testing.TB, base, target ir.NodeRef, kind ir.EdgeKind, tag []byte, seq int64) ir.EdgeRecord {
	t.Helper()
	baseKey, err := ir.Resolve(base)
	require.NoError(t, err)
	targetKey, err := ir.Resolve(target)
	require.NoError(t, err)

	e := ir.EdgeRecord{
		Base:      baseKey,
		BaseNode:  base,
		Target:    targetKey,
		Partition: ir.PartitionFor(target.Kind),
		Kind:      kind,
		Tag:       tag,
		Author:    Alice,
		CreatedAt: Epoch + ir.Timestamp(seq),
		Seq:       seq,
	}
	if e.Tag == nil {
		e.Tag = []byte{}
	}
	ref, err := ir.EdgeRef(e)
	require.NoError(t, err)
	e.Ref = ref
	return e
}

// OpenSQLite opens a SQLite substrate in a temporary directory.
func OpenSQLite(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// OpenBadger opens an in-memory Badger substrate.
func OpenBadger(t testing.TB) *kvstore.Store {
	t.Helper()
	s, err := kvstore.Open(kvstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Backends lists every substrate implementation by name.
var Backends = map[string]func(testing.TB) store.Substrate{
	"sqlite": func(t testing.TB) store.Substrate { return OpenSQLite(t) },
	"badger": func(t testing.TB) store.Substrate { return OpenBadger(t) },
}

// ForEachBackend runs fn as a subtest against a fresh substrate of every
// backend.
func ForEachBackend(t *testing.T, fn func(t *testing.T, sub store.Substrate)) {
	for _, name := range []string{"sqlite", "badger"} {
		t.Run(name, func(t *testing.T) {
			fn(t, Backends[name](t))
		})
	}
}
