package harness

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/thinglink/internal/identity"
	"github.com/roach88/thinglink/internal/ir"
	"github.com/roach88/thinglink/internal/signal"
)

// symbols maps scenario names to content addresses and back. Addresses
// that were never named render as "#1", "#2", ... in order of first use.
type symbols struct {
	byName map[string]string
	byRaw  map[string]string
	agents map[string]ir.IdentityKey
	anon   int
}

func newSymbols() *symbols {
	return &symbols{
		byName: make(map[string]string),
		byRaw:  make(map[string]string),
		agents: make(map[string]ir.IdentityKey),
	}
}

// agent returns the identity key of a named agent. Keys derive from the
// name, so a name always maps to the same key.
func (s *symbols) agent(name string) (ir.IdentityKey, error) {
	if key, ok := s.agents[name]; ok {
		return key, nil
	}
	seed := sha256.Sum256([]byte("thinglink-scenario-agent:" + name))
	a, err := identity.FromSeed(seed[:])
	if err != nil {
		return "", err
	}
	key := a.Key()
	s.agents[name] = key
	s.byRaw[string(key)] = name
	return key, nil
}

// bind names raw. Rebinding a name to another address is an error.
func (s *symbols) bind(name, raw string) error {
	if prev, ok := s.byName[name]; ok && prev != raw {
		return fmt.Errorf("name %q is already bound", name)
	}
	s.byName[name] = raw
	s.byRaw[raw] = name
	return nil
}

// entity returns the id bound to name.
func (s *symbols) entity(name string) (ir.Hash, error) {
	raw, ok := s.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown entity %q", name)
	}
	return ir.Hash(raw), nil
}

// name returns the scenario name of raw, inventing one if needed.
func (s *symbols) name(raw string) string {
	if name, ok := s.byRaw[raw]; ok {
		return name
	}
	s.anon++
	name := fmt.Sprintf("#%d", s.anon)
	s.byRaw[raw] = name
	return name
}

// node parses "kind:name" into a NodeRef.
func (s *symbols) node(text string) (ir.NodeRef, error) {
	n, err := ir.ParseNodeRef(text)
	if err != nil {
		return ir.NodeRef{}, err
	}
	switch n.Kind {
	case ir.NodeIdentity:
		key, err := s.agent(n.ID)
		if err != nil {
			return ir.NodeRef{}, err
		}
		return ir.IdentityNode(key), nil
	case ir.NodeEntity:
		id, err := s.entity(n.ID)
		if err != nil {
			return ir.NodeRef{}, err
		}
		return ir.EntityNode(id), nil
	default:
		return n, nil
	}
}

// links converts scenario links into link specs.
func (s *symbols) links(links []Link) ([]ir.LinkSpec, error) {
	specs := make([]ir.LinkSpec, 0, len(links))
	for _, l := range links {
		dir, err := ir.ParseLinkDirection(l.Direction)
		if err != nil {
			return nil, err
		}
		target, err := s.node(l.Target)
		if err != nil {
			return nil, err
		}
		spec := ir.LinkSpec{Direction: dir, Target: target}
		if l.Tag != "" {
			spec.Tag = []byte(l.Tag)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// renderNode renders n as "kind:name".
func (s *symbols) renderNode(n ir.NodeRef) string {
	if n.Kind == ir.NodeAnchor {
		return n.String()
	}
	return n.Kind.String() + ":" + s.name(n.ID)
}

// renderEntity renders an entity read, or {"missing": true} for nil.
func (s *symbols) renderEntity(e *ir.Entity) map[string]any {
	if e == nil {
		return map[string]any{"missing": true}
	}
	return map[string]any{
		"id":      s.name(string(e.ID)),
		"record":  s.name(string(e.RecordID)),
		"content": e.Content,
		"creator": s.name(string(e.Creator)),
		"revised": e.UpdatedAt != nil,
	}
}

// renderEdge renders e as "src -> dst", followed by the user tag and a
// backlink marker when present.
func (s *symbols) renderEdge(e ir.Edge) string {
	var b strings.Builder
	b.WriteString(s.renderNode(e.Src))
	b.WriteString(" -> ")
	b.WriteString(s.renderNode(e.Dst))
	if len(e.Tag.UserTag) > 0 {
		b.WriteString(" tag=")
		b.Write(e.Tag.UserTag)
	}
	if e.Tag.Backlink != "" {
		b.WriteString(" backlink")
	}
	return b.String()
}

// renderLinked renders a neighbour as "kind:name", followed by the user
// tag when present.
func (s *symbols) renderLinked(l ir.LinkedNode) string {
	out := s.renderNode(l.Node)
	if len(l.Tag.UserTag) > 0 {
		out += " tag=" + string(l.Tag.UserTag)
	}
	return out
}

// renderSignal renders a signal kind, with the edge count for edge
// signals.
func renderSignal(sig signal.Signal) string {
	switch sig.Kind {
	case signal.EdgesCreated, signal.EdgesDeleted:
		return fmt.Sprintf("%s(%d)", sig.Kind, len(sig.Edges))
	default:
		return string(sig.Kind)
	}
}

// sorted renders each item and returns the results in lexical order.
// Substrate scan order is unspecified, so listings are compared sorted.
func sorted[T any](items []T, render func(T) string) []any {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = render(item)
	}
	slices.Sort(lines)
	out := make([]any, len(lines))
	for i, l := range lines {
		out[i] = l
	}
	return out
}
