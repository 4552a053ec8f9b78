package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/thinglink/internal/graph"
	"github.com/roach88/thinglink/internal/integrity"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/signal"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/testutil"
)

// DefaultAgent acts in steps that name no agent.
const DefaultAgent = "alice"

// Harness runs scenario steps against one substrate with a deterministic
// clock shared by every agent.
type Harness struct {
	sub    store.Substrate
	clock  *testutil.DeterministicClock
	rec    *signal.Recorder
	ids    *signal.SequenceGenerator
	rules  *integrity.Rules
	graphs map[string]*graph.Graph
	syms   *symbols
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithRules sets the integrity rules every agent's graph enforces.
func WithRules(r *integrity.Rules) Option {
	return func(h *Harness) {
		h.rules = r
	}
}

// WithLogger sets the logger handed to each graph. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes scenario against sub and returns the trace.
//
// The returned error is for scenarios that cannot run at all, such as a
// reference to an unbound name. Failed expectations and assertions are
// reported in Result.Errors.
func Run(ctx context.Context, sub store.Substrate, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		sub:    sub,
		clock:  testutil.NewDeterministicClock(),
		rec:    &signal.Recorder{},
		ids:    signal.NewSequenceGenerator("signal"),
		rules:  integrity.New(nil),
		graphs: make(map[string]*graph.Graph),
		syms:   newSymbols(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	defaultAgent := scenario.Agent
	if defaultAgent == "" {
		defaultAgent = DefaultAgent
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		agent := step.Agent
		if agent == "" {
			agent = defaultAgent
		}
		event, err := h.execute(ctx, i+1, agent, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		result.Trace = append(result.Trace, event)
		for _, msg := range checkExpect(event, step.Expect) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, step.Op, msg))
		}
	}

	actx := &AssertionContext{Ctx: ctx, Harness: h}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// graphFor returns the graph acting as the named agent, opening it on
// first use.
func (h *Harness) graphFor(ctx context.Context, name string) (*graph.Graph, error) {
	if g, ok := h.graphs[name]; ok {
		return g, nil
	}
	key, err := h.syms.agent(name)
	if err != nil {
		return nil, err
	}
	g, err := graph.Open(ctx, h.sub, key,
		graph.WithClock(h.clock, h.clock),
		graph.WithRules(h.rules),
		graph.WithSink(h.rec),
		graph.WithIDGenerator(h.ids),
		graph.WithLogger(h.logger.With("agent", name)),
	)
	if err != nil {
		return nil, err
	}
	h.graphs[name] = g
	return g, nil
}

// execute runs one step. Graph errors are recorded in the event; only
// malformed steps return an error.
func (h *Harness) execute(ctx context.Context, n int, agent string, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: n, Op: step.Op, Agent: agent}
	g, err := h.graphFor(ctx, agent)
	if err != nil {
		return event, err
	}

	before := len(h.rec.Signals())
	out, err := h.apply(ctx, g, step)
	if err != nil {
		return event, err
	}
	if out.err != nil {
		event.Error = errorCode(out.err)
	} else {
		event.Result = out.result
	}
	for _, sig := range h.rec.Signals()[before:] {
		event.Signals = append(event.Signals, renderSignal(sig))
	}
	return event, nil
}

// outcome is a rendered operation result and the operation's own error.
type outcome struct {
	result any
	err    error
}

// apply performs the step's operation. The returned error is for a
// malformed step.
func (h *Harness) apply(ctx context.Context, g *graph.Graph, step Step) (outcome, error) {
	switch step.Op {
	case OpInit:
		edges, err := g.Init(ctx)
		return outcome{map[string]any{"created": sorted(edges, h.syms.renderEdge)}, err}, nil

	case OpCreate:
		specs, err := h.syms.links(step.Links)
		if err != nil {
			return outcome{}, err
		}
		e, opErr := g.CreateEntity(ctx, step.Content, specs)
		if e.ID != "" && step.As != "" {
			if err := h.syms.bind(step.As, string(e.ID)); err != nil {
				return outcome{}, err
			}
		}
		return outcome{h.syms.renderEntity(&e), opErr}, nil

	case OpUpdate:
		id, err := h.syms.entity(step.ID)
		if err != nil {
			return outcome{}, err
		}
		up, opErr := g.UpdateEntity(ctx, id, step.Content)
		if opErr == nil && step.As != "" {
			if err := h.syms.bind(step.As, string(up.RecordRef)); err != nil {
				return outcome{}, err
			}
		}
		return outcome{h.syms.renderEntity(&up.Entity), opErr}, nil

	case OpGetLatest, OpGetOriginal:
		id, err := h.syms.entity(step.ID)
		if err != nil {
			return outcome{}, err
		}
		get := g.GetLatest
		if step.Op == OpGetOriginal {
			get = g.GetOriginal
		}
		e, opErr := get(ctx, id)
		return outcome{h.syms.renderEntity(e), opErr}, nil

	case OpRevisions:
		id, err := h.syms.entity(step.ID)
		if err != nil {
			return outcome{}, err
		}
		revs, opErr := g.GetAllRevisions(ctx, id)
		out := make([]any, len(revs))
		for i := range revs {
			out[i] = h.syms.renderEntity(&revs[i])
		}
		return outcome{out, opErr}, nil

	case OpDelete:
		id, err := h.syms.entity(step.ID)
		if err != nil {
			return outcome{}, err
		}
		explicit, err := h.syms.links(step.Unlink)
		if err != nil {
			return outcome{}, err
		}
		removed, opErr := g.DeleteEntity(ctx, id, graph.DeleteOptions{
			DeleteBacklinks:        step.Backlinks,
			DeleteLinksFromCreator: step.CreatorLinks,
			Explicit:               explicit,
		})
		return outcome{map[string]any{"removed": sorted(removed, h.syms.renderEdge)}, opErr}, nil

	case OpLink, OpUnlink:
		node, err := h.syms.node(step.Node)
		if err != nil {
			return outcome{}, err
		}
		specs, err := h.syms.links(step.Links)
		if err != nil {
			return outcome{}, err
		}
		if step.Op == OpLink {
			created, opErr := g.CreateLinks(ctx, node, specs)
			return outcome{map[string]any{"created": sorted(created, h.syms.renderEdge)}, opErr}, nil
		}
		removed, opErr := g.DeleteLinks(ctx, node, specs)
		return outcome{map[string]any{"removed": sorted(removed, h.syms.renderEdge)}, opErr}, nil

	case OpLinked:
		node, err := h.syms.node(step.Node)
		if err != nil {
			return outcome{}, err
		}
		return h.linked(ctx, g, node, step.Kind)

	case OpNode:
		node, err := h.syms.node(step.Node)
		if err != nil {
			return outcome{}, err
		}
		nl, opErr := g.GetNodeAndLinkedIDs(ctx, node)
		if opErr != nil || nl == nil {
			return outcome{map[string]any{"missing": true}, opErr}, nil
		}
		out := map[string]any{
			"node":   h.syms.renderNode(nl.Node),
			"linked": sorted(nl.Linked, h.syms.renderLinked),
		}
		if nl.Content != nil {
			out["content"] = *nl.Content
		}
		return outcome{out, nil}, nil

	case OpIdentities:
		keys, opErr := g.AllIdentities(ctx)
		return outcome{sorted(keys, func(k ir.IdentityKey) string { return h.syms.name(string(k)) }), opErr}, nil

	default:
		return outcome{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// linked lists what node links to. kind is identity, anchor, entity
// (ids), entities (latest revisions) or all.
func (h *Harness) linked(ctx context.Context, g *graph.Graph, node ir.NodeRef, kind string) (outcome, error) {
	var list func(context.Context, ir.NodeRef) ([]ir.LinkedNode, error)
	switch kind {
	case "identity":
		list = g.GetLinkedIdentities
	case "anchor":
		list = g.GetLinkedAnchors
	case "entity":
		list = g.GetLinkedEntityIDs
	case "all", "":
		list = g.GetAllLinkedNodeIDs
	case "entities":
		entities, err := g.GetLinkedEntities(ctx, node)
		out := make([]any, len(entities))
		for i := range entities {
			out[i] = h.syms.renderEntity(&entities[i])
		}
		return outcome{out, err}, nil
	default:
		return outcome{}, fmt.Errorf("unknown linked kind %q", kind)
	}
	linked, err := list(ctx, node)
	return outcome{sorted(linked, h.syms.renderLinked), err}, nil
}

// errorCode renders err as its code, prefixed "PARTIAL/" for a partial
// failure.
func errorCode(err error) string {
	code := string(ir.CodeOf(err))
	if code == "" {
		code = "ERROR"
	}
	if _, ok := ir.AsPartial(err); ok {
		return "PARTIAL/" + code
	}
	return code
}

// checkExpect compares a step's event with its expectations.
func checkExpect(event TraceEvent, want *Expect) []string {
	if want == nil {
		if event.Error != "" {
			return []string{"unexpected error " + event.Error}
		}
		return nil
	}

	var failures []string
	if want.Error != event.Error {
		failures = append(failures, fmt.Sprintf("expected error %q, got %q", want.Error, event.Error))
	}
	if want.Error != "" {
		return failures
	}

	entity, _ := event.Result.(map[string]any)
	if want.Content != nil {
		if got, ok := entity["content"].(string); !ok || got != *want.Content {
			failures = append(failures, fmt.Sprintf("expected content %q, got %v", *want.Content, entity["content"]))
		}
	}
	if want.Missing && entity["missing"] != true {
		failures = append(failures, "expected no entity")
	}
	if want.Count != nil {
		if n, ok := resultLen(event.Result); !ok || n != *want.Count {
			failures = append(failures, fmt.Sprintf("expected %d results, got %v", *want.Count, event.Result))
		}
	}
	return failures
}

// resultLen returns the length of a listing result. Results shaped
// {"created": [...]} or {"removed": [...]} count their list.
func resultLen(result any) (int, bool) {
	switch r := result.(type) {
	case []any:
		return len(r), true
	case map[string]any:
		for _, key := range []string{"created", "removed", "linked"} {
			if list, ok := r[key].([]any); ok {
				return len(list), true
			}
		}
	}
	return 0, false
}
