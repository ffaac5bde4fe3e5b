package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/distd/pkg/api"
	"github.com/marmos91/distd/pkg/api/handlers"
	"github.com/marmos91/distd/pkg/apiclient"
	"github.com/marmos91/distd/pkg/server"
	"github.com/marmos91/distd/pkg/stats"
	"github.com/marmos91/distd/pkg/store"
)

func startServer(t *testing.T) (addr, root string) {
	t.Helper()
	root = t.TempDir()
	st, err := store.NewOS(root)
	require.NoError(t, err)

	cfg := server.DefaultConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = 0
	srv := server.New(cfg, st, stats.New())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Listen(ctx))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv.Addr(), root
}

// resetFlags restores every flag to its default so one execution does not
// leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := GetRootCmd()
	resetFlags(root)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--no-color"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ls", "get", "put", "rm", "stat", "syst", "status", "context", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestLsEmpty(t *testing.T) {
	addr, _ := startServer(t)

	out, err := run(t, "ls", "--server", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "No files on the server.")
}

func TestPutLsGetRm(t *testing.T) {
	addr, root := startServer(t)
	local := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello world"), 0o644))

	out, err := run(t, "put", local, "--server", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded hello.txt (11 bytes)")

	data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	out, err = run(t, "ls", "--server", addr, "-o", "json")
	require.NoError(t, err)
	var files []FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "hello.txt", files[0].Name)
	assert.Equal(t, "FILE", files[0].Type)
	assert.Equal(t, int64(11), files[0].Size)

	dest := filepath.Join(t.TempDir(), "copy.txt")
	out, err = run(t, "get", "hello.txt", dest, "--server", addr, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Downloaded hello.txt (11 bytes)")
	data, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	out, err = run(t, "rm", "hello.txt", "--server", addr, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "File hello.txt deleted successfully")
	assert.NoFileExists(t, filepath.Join(root, "hello.txt"))
}

func TestPutConflict(t *testing.T) {
	addr, root := startServer(t)
	local := filepath.Join(t.TempDir(), "dup.bin")
	require.NoError(t, os.WriteFile(local, []byte("one"), 0o644))

	_, err := run(t, "put", local, "--server", addr)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(local, []byte("second"), 0o644))
	_, err = run(t, "put", local, "--server", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = run(t, "put", local, "--server", addr, "--force")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "dup.bin"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestGetMissingFile(t *testing.T) {
	addr, _ := startServer(t)
	dest := filepath.Join(t.TempDir(), "nope.txt")

	_, err := run(t, "get", "nope.txt", dest, "--server", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".part")
}

func TestStatAndSyst(t *testing.T) {
	addr, _ := startServer(t)

	out, err := run(t, "syst", "--server", addr)
	require.NoError(t, err)
	assert.Contains(t, out, server.SystemType())

	out, err = run(t, "stat", "--server", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Your Connection:")
}

func TestConnectRefused(t *testing.T) {
	_, err := run(t, "ls", "--server", "127.0.0.1:1", "--timeout", "2s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestInvalidOutputFormat(t *testing.T) {
	addr, _ := startServer(t)
	_, err := run(t, "ls", "--server", addr, "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

type fakeSource struct {
	running bool
	conns   []handlers.ConnectionInfo
}

func (f *fakeSource) IsRunning() bool { return f.running }
func (f *fakeSource) ActiveClients() int { return len(f.conns) }
func (f *fakeSource) StatsSnapshot() stats.Snapshot {
	return stats.Snapshot{StartedAt: time.Now().Add(-time.Hour), Uptime: time.Hour, FilesTransferred: 4}
}
func (f *fakeSource) Connections() []handlers.ConnectionInfo { return f.conns }

func TestStatus(t *testing.T) {
	src := &fakeSource{running: true, conns: []handlers.ConnectionInfo{{ID: "c1", Addr: "10.0.0.9:50000", State: "idle"}}}
	srv := httptest.NewServer(api.NewRouter(src))
	t.Cleanup(srv.Close)

	out, err := run(t, "status", "--api", srv.URL, "-o", "json")
	require.NoError(t, err)

	var status ServerStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Ready)
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, 1, status.ActiveClients)
	require.NotNil(t, status.Stats)
	assert.Equal(t, uint64(4), status.Stats.FilesTransferred)
	require.Len(t, status.Connections, 1)
	assert.Equal(t, "c1", status.Connections[0].ID)

	out, err = run(t, "status", "--api", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "ready")
	assert.Contains(t, out, "10.0.0.9:50000")
}

func TestCollectStatusNotReady(t *testing.T) {
	srv := httptest.NewServer(api.NewRouter(&fakeSource{running: false}))
	t.Cleanup(srv.Close)

	status := collectStatus(context.Background(), apiclient.New(srv.URL))
	assert.False(t, status.Ready)
	assert.Equal(t, "not ready", status.Status)
	assert.Equal(t, "server not accepting connections", status.Error)
}

func TestCollectStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(api.NewRouter(&fakeSource{}))
	url := srv.URL
	srv.Close()

	status := collectStatus(context.Background(), apiclient.New(url))
	assert.Equal(t, "unreachable", status.Status)
	assert.NotEmpty(t, status.Error)
	assert.Nil(t, status.Stats)
}
