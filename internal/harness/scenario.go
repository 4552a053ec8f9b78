package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of graph operations loaded from YAML.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Agent is the default acting agent. Default: alice.
	Agent string `yaml:"agent,omitempty"`

	// Steps run in order against one substrate.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one graph operation.
//
// Nodes are written "kind:name": entity names are bound by an earlier
// step's "as", identity names are agent names, anchor names are labels.
type Step struct {
	Op    string `yaml:"op"`
	Agent string `yaml:"agent,omitempty"`

	// As binds a name to the entity a create step makes, or to the
	// revision record an update step writes.
	As string `yaml:"as,omitempty"`

	ID      string `yaml:"id,omitempty"`
	Node    string `yaml:"node,omitempty"`
	Content string `yaml:"content,omitempty"`
	Links   []Link `yaml:"links,omitempty"`

	// Kind selects what a linked step lists: identity, anchor, entity,
	// entities or all.
	Kind string `yaml:"kind,omitempty"`

	// Delete options.
	Backlinks    bool   `yaml:"backlinks,omitempty"`
	CreatorLinks bool   `yaml:"creator_links,omitempty"`
	Unlink       []Link `yaml:"unlink,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Link is a relation relative to a step's base node.
type Link struct {
	Direction string `yaml:"direction"`
	Target    string `yaml:"target"`
	Tag       string `yaml:"tag,omitempty"`
}

// Expect checks the outcome of one step.
type Expect struct {
	// Error is the expected error code, "PARTIAL/<code>" for a partial
	// failure.
	Error string `yaml:"error,omitempty"`

	// Content is the expected content of a returned entity.
	Content *string `yaml:"content,omitempty"`

	// Count is the expected length of a returned list.
	Count *int `yaml:"count,omitempty"`

	// Missing expects a read to return no entity.
	Missing bool `yaml:"missing,omitempty"`
}

// Step operations.
const (
	OpInit        = "init"
	OpCreate      = "create"
	OpUpdate      = "update"
	OpGetLatest   = "get_latest"
	OpGetOriginal = "get_original"
	OpRevisions   = "revisions"
	OpDelete      = "delete"
	OpLink        = "link"
	OpUnlink      = "unlink"
	OpLinked      = "linked"
	OpNode        = "node"
	OpIdentities  = "identities"
)

// stepFields lists which fields each operation requires.
var stepFields = map[string]struct{ id, node, links bool }{
	OpInit:        {},
	OpCreate:      {},
	OpUpdate:      {id: true},
	OpGetLatest:   {id: true},
	OpGetOriginal: {id: true},
	OpRevisions:   {id: true},
	OpDelete:      {id: true},
	OpLink:        {node: true, links: true},
	OpUnlink:      {node: true, links: true},
	OpLinked:      {node: true},
	OpNode:        {node: true},
	OpIdentities:  {},
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks structure. Names and nodes are checked when
// the scenario runs.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		need, ok := stepFields[step.Op]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if need.id && step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", i, step.Op)
		}
		if need.node && step.Node == "" {
			return fmt.Errorf("steps[%d]: node is required for %s", i, step.Op)
		}
		if need.links && len(step.Links) == 0 {
			return fmt.Errorf("steps[%d]: links are required for %s", i, step.Op)
		}
		if step.As != "" && step.Op != OpCreate && step.Op != OpUpdate {
			return fmt.Errorf("steps[%d]: as is only valid for create and update", i)
		}
		for j, l := range slices.Concat(step.Links, step.Unlink) {
			if l.Direction == "" || l.Target == "" {
				return fmt.Errorf("steps[%d].links[%d]: direction and target are required", i, j)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}
