package testutil

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/store"
)

// Op names a substrate method for fault injection.
type Op string

const (
	OpPutRecord       Op = "put_record"
	OpGetRecord       Op = "get_record"
	OpTombstoneRecord Op = "tombstone_record"
	OpPutEdge         Op = "put_edge"
	OpGetEdge         Op = "get_edge"
	OpDeleteEdge      Op = "delete_edge"
	OpQueryEdges      Op = "query_edges"
)

// ErrInjected is the cause of every injected failure.
var ErrInjected = errors.New("injected fault")

// FaultySubstrate wraps a Substrate and fails chosen calls.
//
// FailAt(op, n) makes the n-th call (1-based, counted from the FailAt call)
// of op fail with a SUBSTRATE_ERROR wrapping ErrInjected. Calls that fail do
// not reach the wrapped substrate.
type FaultySubstrate struct {
	store.Substrate

	mu     sync.Mutex
	counts map[Op]int
	failAt map[Op]int
}

// NewFaultySubstrate wraps inner with no faults armed.
func NewFaultySubstrate(inner store.Substrate) *FaultySubstrate {
	return &FaultySubstrate{
		Substrate: inner,
		counts:    make(map[Op]int),
		failAt:    make(map[Op]int),
	}
}

// FailAt arms a fault on the n-th next call of op.
func (f *FaultySubstrate) FailAt(op Op, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[op] = 0
	f.failAt[op] = n
}

// Calls returns how many times op was called since it was last armed.
func (f *FaultySubstrate) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

func (f *FaultySubstrate) trip(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[op]++
	if n, ok := f.failAt[op]; ok && f.counts[op] == n {
		delete(f.failAt, op)
		return ir.Substrate(string(op), ErrInjected)
	}
	return nil
}

func (f *FaultySubstrate) PutRecord(ctx context.Context, r ir.Record) error {
	if err := f.trip(OpPutRecord); err != nil {
		return err
	}
	return f.Substrate.PutRecord(ctx, r)
}

func (f *FaultySubstrate) GetRecord(ctx context.Context, id ir.Hash) (ir.Record, error) {
	if err := f.trip(OpGetRecord); err != nil {
		return ir.Record{}, err
	}
	return f.Substrate.GetRecord(ctx, id)
}

func (f *FaultySubstrate) TombstoneRecord(ctx context.Context, id ir.Hash) error {
	if err := f.trip(OpTombstoneRecord); err != nil {
		return err
	}
	return f.Substrate.TombstoneRecord(ctx, id)
}

func (f *FaultySubstrate) PutEdge(ctx context.Context, e ir.EdgeRecord) error {
	if err := f.trip(OpPutEdge); err != nil {
		return err
	}
	return f.Substrate.PutEdge(ctx, e)
}

func (f *FaultySubstrate) GetEdge(ctx context.Context, ref ir.Hash) (ir.EdgeRecord, error) {
	if err := f.trip(OpGetEdge); err != nil {
		return ir.EdgeRecord{}, err
	}
	return f.Substrate.GetEdge(ctx, ref)
}

func (f *FaultySubstrate) DeleteEdge(ctx context.Context, ref ir.Hash) (bool, error) {
	if err := f.trip(OpDeleteEdge); err != nil {
		return false, err
	}
	return f.Substrate.DeleteEdge(ctx, ref)
}

func (f *FaultySubstrate) QueryEdges(ctx context.Context, base ir.Key, p ir.Partition, k ir.EdgeKind) iter.Seq2[ir.EdgeRecord, error] {
	if err := f.trip(OpQueryEdges); err != nil {
		return func(yield func(ir.EdgeRecord, error) bool) {
			yield(ir.EdgeRecord{}, err)
		}
	}
	return f.Substrate.QueryEdges(ctx, base, p, k)
}
