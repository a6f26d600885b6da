package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbot/internal/types"
)

type failingBackend struct {
	loadErr error
	saveErr error
	saved   []string
}

func (f *failingBackend) Load(context.Context) (string, error) { return "", f.loadErr }

func (f *failingBackend) Save(_ context.Context, id string) error {
	f.saved = append(f.saved, id)
	return f.saveErr
}

func TestGetOrCreateSessionID_StableAcrossCalls(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend("")
	s := NewSessionStore(backend, nil)

	first, err := s.GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.True(t, strings.HasPrefix(string(first), "sess_"))

	for i := 0; i < 5; i++ {
		again, err := s.GetOrCreateSessionID(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, backend.Saves())
}

func TestGetOrCreateSessionID_ReusesPersisted(t *testing.T) {
	backend := NewMemoryBackend("sess_existing")
	s := NewSessionStore(backend, nil)

	id, err := s.GetOrCreateSessionID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SessionID("sess_existing"), id)
	assert.Equal(t, 0, backend.Saves())
}

func TestUpdateSessionID(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend("sess_old")
	s := NewSessionStore(backend, nil)

	_, err := s.GetOrCreateSessionID(ctx)
	require.NoError(t, err)

	require.NoError(t, s.UpdateSessionID(ctx, "sess_old"))
	require.NoError(t, s.UpdateSessionID(ctx, "  "))
	assert.Equal(t, 0, backend.Saves())

	require.NoError(t, s.UpdateSessionID(ctx, "sess_new"))
	require.NoError(t, s.UpdateSessionID(ctx, "sess_new"))
	assert.Equal(t, 1, backend.Saves())

	stored, _ := backend.Load(ctx)
	assert.Equal(t, "sess_new", stored)
	id, err := s.GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.SessionID("sess_new"), id)
}

func TestGetOrCreateSessionID_LoadFailureDoesNotOverwrite(t *testing.T) {
	backend := &failingBackend{loadErr: errors.New("disk gone")}
	s := NewSessionStore(backend, nil)

	id, err := s.GetOrCreateSessionID(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, id)
	assert.Empty(t, backend.saved)

	again, err := s.GetOrCreateSessionID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestGetOrCreateSessionID_SaveFailureKeepsIdentity(t *testing.T) {
	backend := &failingBackend{saveErr: errors.New("read-only")}
	s := NewSessionStore(backend, nil)

	id, err := s.GetOrCreateSessionID(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, id)

	again, err := s.GetOrCreateSessionID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestSessionStore_ConcurrentCreateYieldsOneID(t *testing.T) {
	backend := NewMemoryBackend("")
	s := NewSessionStore(backend, nil)

	var wg sync.WaitGroup
	ids := make([]types.SessionID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], _ = s.GetOrCreateSessionID(context.Background())
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, backend.Saves())
}

func TestNewSessionID_Unique(t *testing.T) {
	seen := make(map[types.SessionID]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewSessionID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestFileBackend_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	first := NewSessionStore(NewFileBackend(path, "rb_chat_session_id"), nil)
	id, err := first.GetOrCreateSessionID(ctx)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := NewSessionStore(NewFileBackend(path, "rb_chat_session_id"), nil)
	again, err := second.GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, second.UpdateSessionID(ctx, "sess_server"))
	third := NewSessionStore(NewFileBackend(path, "rb_chat_session_id"), nil)
	got, err := third.GetOrCreateSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.SessionID("sess_server"), got)
}

func TestFileBackend_KeyMismatchIsAbsent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, NewFileBackend(path, "widget_a").Save(ctx, "sess_a"))

	v, err := NewFileBackend(path, "widget_b").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileBackend(path, "k").Load(context.Background())
	assert.Error(t, err)
}
