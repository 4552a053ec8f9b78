package graph

import (
	"context"
	"log/slog"

	"github.com/roach88/thinglink/internal/clock"
	"github.com/roach88/thinglink/internal/index"
	"github.com/roach88/thinglink/internal/integrity"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/signal"
	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/thing"
)

// AllAgents is the anchor every initialized agent links itself to.
const AllAgents = "all_agents"

// Graph exposes the graph operations over a substrate.
type Graph struct {
	sub    store.Substrate
	agent  ir.IdentityKey
	idx    *index.Index
	things *thing.Chain
	sink   signal.Sink
	ids    signal.IDGenerator
	logger *slog.Logger
}

type options struct {
	seq    clock.Sequencer
	now    clock.TimeSource
	rules  *integrity.Rules
	sink   signal.Sink
	ids    signal.IDGenerator
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*options)

// WithClock sets the sequence and time source stamped onto writes.
// Default: a clock resuming after the substrate's MaxSeq, and wall time.
func WithClock(seq clock.Sequencer, now clock.TimeSource) Option {
	return func(o *options) {
		o.seq = seq
		o.now = now
	}
}

// WithRules sets the integrity rules. Default: structural rules only.
func WithRules(r *integrity.Rules) Option {
	return func(o *options) {
		o.rules = r
	}
}

// WithSink sets where change signals are published. Default: discarded.
func WithSink(s signal.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithIDGenerator sets the signal id generator. Default: UUIDv7.
func WithIDGenerator(g signal.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Open binds a Graph to sub, writing as agent.
func Open(ctx context.Context, sub store.Substrate, agent ir.IdentityKey, opts ...Option) (*Graph, error) {
	if agent == "" {
		return nil, ir.Invariant("agent identity is empty")
	}

	o := options{
		now:    clock.SystemTime{},
		rules:  integrity.New(nil),
		sink:   signal.Discard,
		ids:    signal.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.seq == nil {
		last, err := sub.MaxSeq(ctx)
		if err != nil {
			return nil, err
		}
		o.seq = clock.NewAt(last)
	}

	idx := index.New(sub, agent, o.seq, o.now, index.WithRules(o.rules), index.WithLogger(o.logger))
	things := thing.New(idx, agent, o.seq, o.now, thing.WithRules(o.rules), thing.WithLogger(o.logger))

	return &Graph{
		sub:    sub,
		agent:  agent,
		idx:    idx,
		things: things,
		sink:   o.sink,
		ids:    o.ids,
		logger: o.logger,
	}, nil
}

// Agent returns the identity authoring this graph's writes.
func (g *Graph) Agent() ir.IdentityKey {
	return g.agent
}

// publish stamps s as a local signal and hands it to the sink.
func (g *Graph) publish(s signal.Signal) {
	s.ID = g.ids.Generate()
	s.Scope = signal.Local
	g.sink.Publish(s)
}

// Init registers the agent on the AllAgents anchor with a bidirectional
// link. It is idempotent: when the anchor already links to the agent
// nothing is written and no edges are returned.
func (g *Graph) Init(ctx context.Context) ([]ir.Edge, error) {
	anchor := ir.AnchorNode(AllAgents)
	me := ir.IdentityNode(g.agent)
	key, err := ir.Resolve(me)
	if err != nil {
		return nil, err
	}

	for e, err := range g.idx.Query(ctx, anchor, ir.ToIdentity) {
		if err != nil {
			return nil, err
		}
		if e.Target == key {
			g.logger.Debug("agent already registered", "agent", g.agent)
			return nil, nil
		}
	}

	created, err := g.idx.CreateEdge(ctx, me, anchor, ir.Bidirectional, nil)
	if pe, ok := ir.AsPartial(err); ok {
		g.publish(signal.LinksCreated(pe.Created))
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	g.publish(signal.LinksCreated(created))
	g.logger.Info("agent registered", "agent", g.agent)
	return created, nil
}

// AllIdentities lists the identities registered on the AllAgents anchor.
func (g *Graph) AllIdentities(ctx context.Context) ([]ir.IdentityKey, error) {
	linked, err := g.GetLinkedIdentities(ctx, ir.AnchorNode(AllAgents))
	if err != nil {
		return nil, err
	}
	seen := make(map[ir.IdentityKey]bool, len(linked))
	out := []ir.IdentityKey{}
	for _, l := range linked {
		key := ir.IdentityKey(l.Node.ID)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out, nil
}
