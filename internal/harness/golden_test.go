package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinglink/internal/store"
	"github.com/roach88/thinglink/internal/testutil"
)

// TestGoldenScenarios runs every scenario under testdata/scenarios on
// every backend. Both backends must produce the same golden trace.
func TestGoldenScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			testutil.ForEachBackend(t, func(t *testing.T, sub store.Substrate) {
				result, err := RunWithGolden(t, sub, scenario)
				require.NoError(t, err)
				assert.True(t, result.Pass, "errors: %v", result.Errors)
			})
		})
	}
}

func TestMarshalTrace_OneLinePerStep(t *testing.T) {
	trace := []TraceEvent{
		{Step: 1, Op: OpCreate, Agent: "alice", Result: map[string]any{"missing": true}, Signals: []string{"EntityCreated"}},
		{Step: 2, Op: OpUpdate, Agent: "bob", Error: "NOT_FOUND"},
	}

	out, err := MarshalTrace(trace)
	require.NoError(t, err)
	assert.Equal(t,
		`{"agent":"alice","op":"create","result":{"missing":true},"signals":["EntityCreated"],"step":1}`+"\n"+
			`{"agent":"bob","error":"NOT_FOUND","op":"update","step":2}`+"\n",
		string(out))
}

func TestMarshalTrace_Empty(t *testing.T) {
	out, err := MarshalTrace(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
