// Package graph is the public surface of the entity graph: versioned
// entities, typed links between entities, identities and anchors, cascade
// deletion, and the change signals every mutation publishes.
//
// A Graph is bound to one substrate and one agent identity, which authors
// every record and edge it writes. Operations are synchronous and hold no
// locks; multi-write operations report partial application through
// *ir.PartialError and still publish signals for what was applied.
package graph
