package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"010_add_index.sql":        {Data: []byte("CREATE INDEX x ON y (z);")},
		"002_session_identity.sql": {Data: []byte("CREATE TABLE a ();")},
		"README.md":                {Data: []byte("not sql")},
		"notes.sql":                {Data: []byte("-- no number")},
		"abc_bad.sql":              {Data: []byte("-- bad number")},
	}
	ms, err := readMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 2, ms[0].Number)
	assert.Equal(t, "session_identity", ms[0].Name)
	assert.Equal(t, 10, ms[1].Number)
	assert.Equal(t, "add_index", ms[1].Name)
}

func TestMigrations_Embedded(t *testing.T) {
	ms, err := readMigrations(Migrations())
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Number)
	assert.Contains(t, ms[0].SQL, "session_identity")
}

func TestNew_RequiresConnectionString(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}
