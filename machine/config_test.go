package machine

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timewinder-dev/jvmcore/vm"
)

func TestParseConfigDefaults(t *testing.T) {
	c, err := parseConfig(strings.NewReader(`
[program]
file = "x.star"
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultEntry, c.Program.Entry)
	assert.Equal(t, 0, c.Trace.CacheSize)
	assert.Empty(t, c.Program.Locals)
}

func TestParseConfigUnknownKey(t *testing.T) {
	_, err := parseConfig(strings.NewReader(`
[program]
entry = "main"
stack = 4
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program.stack")
}

func TestLoadConfigFromFile(t *testing.T) {
	c, err := LoadConfigFromFile(filepath.Join("..", "testdata", "myobject.toml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "testdata", "myobject.star"), c.Program.File)
	assert.Equal(t, "main", c.Program.Entry)
	assert.Equal(t, 64, c.Trace.CacheSize)

	c, err = LoadConfigFromFile(filepath.Join("..", "testdata", "badcast.toml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "testdata", "badcast.star"), c.Program.File)

	_, err = LoadConfigFromFile(filepath.Join("..", "testdata", "missing.toml"))
	assert.Error(t, err)
}

func TestEntryLocals(t *testing.T) {
	c, err := LoadConfigFromFile(filepath.Join("..", "testdata", "locals.toml"))
	require.NoError(t, err)
	locals, err := c.EntryLocals()
	require.NoError(t, err)
	assert.Equal(t, []vm.Value{vm.IntValue(7), vm.Null}, locals)

	sparse := &Config{Program: ProgramConfig{Locals: []LocalConfig{{Index: 2, Int: 5}}}}
	locals, err = sparse.EntryLocals()
	require.NoError(t, err)
	assert.Equal(t, []vm.Value{nil, nil, vm.IntValue(5)}, locals)

	dup := &Config{Program: ProgramConfig{Locals: []LocalConfig{{Index: 0}, {Index: 0, Null: true}}}}
	_, err = dup.EntryLocals()
	assert.Error(t, err)

	neg := &Config{Program: ProgramConfig{Locals: []LocalConfig{{Index: -1}}}}
	_, err = neg.EntryLocals()
	assert.Error(t, err)
}
