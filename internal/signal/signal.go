// Package signal carries change notifications out of the graph.
//
// Every mutating graph operation publishes one or more Signals to a Sink.
// The transport behind a Sink is not the graph's concern: Bus fans signals
// out in-process, LogSink writes them to slog, Relay forwards them to
// another sink as remote signals.
package signal

import (
	"fmt"

	"github.com/roach88/thinglink/internal/ir"
)

// Kind identifies what changed.
type Kind string

const (
	EntityCreated Kind = "EntityCreated"
	EntityUpdated Kind = "EntityUpdated"
	EntityDeleted Kind = "EntityDeleted"
	EdgesCreated  Kind = "EdgesCreated"
	EdgesDeleted  Kind = "EdgesDeleted"
)

// Scope says where a signal originated.
type Scope int

const (
	// Local signals describe writes made by this process.
	Local Scope = iota + 1
	// Remote signals were forwarded from elsewhere.
	Remote
)

func (s Scope) String() string {
	switch s {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// Signal is one change notification. Which fields are set depends on Kind:
//
//	EntityCreated  Entity
//	EntityUpdated  Entity, RecordRef, UpdateEdgeRef
//	EntityDeleted  EntityID
//	EdgesCreated   Edges
//	EdgesDeleted   Edges
type Signal struct {
	ID            string     `json:"id"`
	Scope         Scope      `json:"scope"`
	Kind          Kind       `json:"kind"`
	Entity        *ir.Entity `json:"entity,omitempty"`
	RecordRef     ir.Hash    `json:"new_record_ref,omitempty"`
	UpdateEdgeRef ir.Hash    `json:"update_edge_ref,omitempty"`
	EntityID      ir.Hash    `json:"entity_id,omitempty"`
	Edges         []ir.Edge  `json:"edges,omitempty"`
}

// Created returns an EntityCreated signal.
func Created(e ir.Entity) Signal {
	return Signal{Kind: EntityCreated, Entity: &e}
}

// Updated returns an EntityUpdated signal.
func Updated(e ir.Entity, recordRef, updateEdgeRef ir.Hash) Signal {
	return Signal{Kind: EntityUpdated, Entity: &e, RecordRef: recordRef, UpdateEdgeRef: updateEdgeRef}
}

// Deleted returns an EntityDeleted signal.
func Deleted(id ir.Hash) Signal {
	return Signal{Kind: EntityDeleted, EntityID: id}
}

// LinksCreated returns an EdgesCreated signal.
func LinksCreated(edges []ir.Edge) Signal {
	return Signal{Kind: EdgesCreated, Edges: edges}
}

// LinksDeleted returns an EdgesDeleted signal.
func LinksDeleted(edges []ir.Edge) Signal {
	return Signal{Kind: EdgesDeleted, Edges: edges}
}

// Sink receives published signals. Publish must not block on slow
// consumers.
type Sink interface {
	Publish(s Signal)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Signal)

// Publish calls f(s).
func (f SinkFunc) Publish(s Signal) {
	f(s)
}

// Discard drops every signal.
var Discard Sink = SinkFunc(func(Signal) {})
