// Package harness runs scripted graph scenarios and compares their traces
// with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario demonstrates"
//	steps:
//	  - op: create
//	    as: note
//	    content: first draft
//	    links:
//	      - { direction: bidirectional, target: "anchor:inbox", tag: urgent }
//	  - op: update
//	    id: note
//	    as: note_v2
//	    content: second draft
//	  - op: delete
//	    agent: bob
//	    id: note
//	    backlinks: true
//	    expect: { error: NOT_FOUND }
//	assertions:
//	  - type: signal_order
//	    kinds: [EntityCreated, EntityUpdated]
//	  - type: linked
//	    node: anchor:inbox
//	    kind: entity
//	    expect: ["entity:note tag=urgent"]
//
// Nodes are written "kind:name". An entity name is bound by the "as" of
// the step that created it; an identity name is an agent name and maps to
// a fixed key derived from it; an anchor name is the anchor label.
//
// # Operations
//
//   - init, identities: register the agent, list registered agents
//   - create, update, delete: entity lifecycle
//   - get_latest, get_original, revisions: entity reads
//   - link, unlink: relations from a node
//   - linked, node: what a node links to
//
// # Traces
//
// Each step becomes one trace line: the op, the acting agent, the result
// or error code, and the signals it published. Content addresses are
// replaced by scenario names, and unnamed addresses by "#1", "#2", ...
// Listings are sorted since substrate scan order is unspecified, so the
// same scenario yields the same trace on every backend.
//
// # Deterministic Testing
//
// All agents of a run share one testutil.DeterministicClock and a
// sequential signal id generator, so record ids, edge refs and revision
// order are reproducible.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/lifecycle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, sub, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        fmt.Println(msg)
//	    }
//	}
package harness
