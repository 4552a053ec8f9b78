package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
steps:
  - op: create
    as: note
    content: hello
    links:
      - { direction: bidirectional, target: "anchor:inbox", tag: urgent }
  - op: delete
    id: note
    backlinks: true
    unlink:
      - { direction: from, target: "identity:bob" }
assertions:
  - type: signal_count
    kind: EntityCreated
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Steps, 2)
	assert.Len(t, scenario.Assertions, 1)

	create := scenario.Steps[0]
	assert.Equal(t, OpCreate, create.Op)
	assert.Equal(t, "note", create.As)
	assert.Equal(t, []Link{{Direction: "bidirectional", Target: "anchor:inbox", Tag: "urgent"}}, create.Links)

	del := scenario.Steps[1]
	assert.True(t, del.Backlinks)
	assert.False(t, del.CreatorLinks)
	assert.Equal(t, "identity:bob", del.Unlink[0].Target)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "description: d\nsteps: [{op: init}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			doc:  "name: n\nsteps: [{op: init}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			doc:  "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "unknown op",
			doc:  "name: n\ndescription: d\nsteps: [{op: explode}]\n",
			want: `steps[0]: unknown op "explode"`,
		},
		{
			name: "update without id",
			doc:  "name: n\ndescription: d\nsteps: [{op: update, content: x}]\n",
			want: "steps[0]: id is required for update",
		},
		{
			name: "link without links",
			doc:  "name: n\ndescription: d\nsteps: [{op: link, node: 'anchor:a'}]\n",
			want: "steps[0]: links are required for link",
		},
		{
			name: "as on a read",
			doc:  "name: n\ndescription: d\nsteps: [{op: get_latest, id: a, as: b}]\n",
			want: "as is only valid for create and update",
		},
		{
			name: "link without target",
			doc:  "name: n\ndescription: d\nsteps: [{op: create, links: [{direction: to}]}]\n",
			want: "steps[0].links[0]: direction and target are required",
		},
		{
			name: "unknown field",
			doc:  "name: n\ndescription: d\nsteps: [{op: init, flavour: x}]\n",
			want: "failed to parse scenario YAML",
		},
		{
			name: "bad assertion",
			doc:  "name: n\ndescription: d\nsteps: [{op: init}]\nassertions: [{type: latest, entity: a}]\n",
			want: "content or missing is required for latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}
