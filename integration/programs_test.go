package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timewinder-dev/jvmcore/machine"
	"github.com/timewinder-dev/jvmcore/vm"
)

func runFile(t *testing.T, name string) (*machine.Result, error) {
	t.Helper()
	c, err := machine.LoadConfigFromFile(filepath.Join("..", "testdata", name))
	require.NoError(t, err)
	m, err := c.BuildMachine()
	require.NoError(t, err)
	return m.Run()
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		file    string
		value   vm.Value
		statics map[string]vm.Value
		errKind string
	}{
		{
			file:    "myobject.toml",
			value:   vm.IntValue(32768),
			statics: map[string]vm.Value{"SubObject.staticVar": vm.IntValue(32768)},
		},
		{
			file:    "locals.toml",
			value:   vm.IntValue(7),
			statics: map[string]vm.Value{"Counter.total": vm.IntValue(7)},
		},
		{
			file:    "badcast.toml",
			errKind: "ClassCastError",
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			res, err := runFile(t, tt.file)
			if tt.errKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errKind, machine.ErrorKind(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, res.Value)
			for k, v := range tt.statics {
				assert.Equal(t, v, res.Statics[k], k)
			}
		})
	}
}

// TestTestdataAssembles loads every run file in testdata and checks that its
// program assembles and installs.
func TestTestdataAssembles(t *testing.T) {
	testdataDir := filepath.Join("..", "testdata")
	err := filepath.Walk(testdataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".toml") {
			return nil
		}
		t.Run(strings.TrimSuffix(info.Name(), ".toml"), func(t *testing.T) {
			c, err := machine.LoadConfigFromFile(path)
			require.NoError(t, err)
			m, err := c.BuildMachine()
			require.NoError(t, err)
			_, ok := m.Program.Method(c.Program.Entry)
			assert.True(t, ok, "entry %s", c.Program.Entry)
		})
		return nil
	})
	require.NoError(t, err)
}

// Tracing the same program twice must produce the same snapshot hashes.
func TestTraceIsDeterministicAcrossRuns(t *testing.T) {
	c, err := machine.LoadConfigFromFile(filepath.Join("..", "testdata", "myobject.toml"))
	require.NoError(t, err)

	var runs [2]*machine.TraceResult
	for i := range runs {
		m, err := c.BuildMachine()
		require.NoError(t, err)
		runs[i], err = m.Trace(m.NewTraceStore(), nil)
		require.NoError(t, err)
	}
	require.Equal(t, len(runs[0].Trace), len(runs[1].Trace))
	for i := range runs[0].Trace {
		assert.Equal(t, runs[0].Trace[i].Op, runs[1].Trace[i].Op)
		// statics hashes only depend on values; frames carry fresh object IDs
		assert.Equal(t, runs[0].Trace[i].StaticsHash, runs[1].Trace[i].StaticsHash, "step %d", i)
	}
}
