package contexts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	store, err := NewStore()
	require.NoError(t, err)
	return store, tmpDir
}

func TestStoreOperations(t *testing.T) {
	store, tmpDir := newTestStore(t)

	expectedPath := filepath.Join(tmpDir, DefaultConfigDir, ConfigFileName)
	assert.Equal(t, expectedPath, store.ConfigPath())

	_, err := store.GetCurrentContext()
	assert.ErrorIs(t, err, ErrNoCurrentContext)
	assert.Empty(t, store.ListContexts())

	// The first context becomes current.
	err = store.AddContext("local", &Context{Addr: "localhost:8888", APIURL: "http://localhost:9090"})
	require.NoError(t, err)
	assert.Equal(t, "local", store.GetCurrentContextName())

	current, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "localhost:8888", current.Addr)
	assert.Equal(t, "http://localhost:9090", current.APIURL)

	err = store.AddContext("lab", &Context{Addr: "10.0.0.5:8888"})
	require.NoError(t, err)
	assert.Equal(t, "local", store.GetCurrentContextName())
	assert.Equal(t, []string{"lab", "local"}, store.ListContexts())

	err = store.AddContext("lab", &Context{Addr: "10.0.0.6:8888"})
	assert.ErrorIs(t, err, ErrContextExists)

	require.NoError(t, store.UseContext("lab"))
	assert.Equal(t, "lab", store.GetCurrentContextName())

	require.NoError(t, store.RenameContext("lab", "bench"))
	assert.Equal(t, "bench", store.GetCurrentContextName())
	assert.ErrorIs(t, store.RenameContext("bench", "local"), ErrContextExists)

	require.NoError(t, store.DeleteContext("bench"))
	assert.Empty(t, store.GetCurrentContextName())

	_, err = store.GetContext("nonexistent")
	assert.ErrorIs(t, err, ErrContextNotFound)
	assert.ErrorIs(t, store.UseContext("nonexistent"), ErrContextNotFound)
	assert.ErrorIs(t, store.DeleteContext("nonexistent"), ErrContextNotFound)
}

func TestStorePersists(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddContext("local", &Context{Addr: "localhost:8888"}))
	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.Touch(now))

	reopened, err := NewStore()
	require.NoError(t, err)
	current, err := reopened.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "localhost:8888", current.Addr)
	assert.True(t, now.Equal(current.LastUsed))

	info, err := os.Stat(reopened.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePermissions), info.Mode().Perm())
}

func TestStoreTouchWithoutContext(t *testing.T) {
	store, _ := newTestStore(t)
	assert.ErrorIs(t, store.Touch(time.Now()), ErrNoCurrentContext)
}

func TestOpenStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenStore(path)
	assert.Error(t, err)
}

func TestStorePreferences(t *testing.T) {
	store, _ := newTestStore(t)

	prefs := store.GetPreferences()
	assert.Empty(t, prefs.DefaultOutput)
	assert.Empty(t, prefs.Color)

	err := store.SetPreferences(Preferences{DefaultOutput: "json", Color: "never"})
	require.NoError(t, err)

	reopened, err := NewStore()
	require.NoError(t, err)
	prefs = reopened.GetPreferences()
	assert.Equal(t, "json", prefs.DefaultOutput)
	assert.Equal(t, "never", prefs.Color)
}
