package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/distd/pkg/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const storeRoot = "/srv"

func newMemStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(afero.NewMemMapFs(), storeRoot)
	require.NoError(t, err)
	return st
}

func startServer(t *testing.T, cfg Config) (*Server, *store.Store) {
	t.Helper()
	st := newMemStore(t)
	return startServerOn(t, cfg, st), st
}

func startServerOn(t *testing.T, cfg Config, st *store.Store) *Server {
	t.Helper()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = 0
	srv := New(cfg, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()
	require.NotEmpty(t, srv.Addr())

	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv
}

// failingReadFs serves name with a file whose reads fail after the first
// few bytes.
type failingReadFs struct {
	afero.Fs
	name string
}

func (f failingReadFs) Open(name string) (afero.File, error) {
	file, err := f.Fs.Open(name)
	if err != nil || path.Base(name) != f.name {
		return file, err
	}
	return &failingReadFile{File: file}, nil
}

type failingReadFile struct {
	afero.File
	reads int
}

func (f *failingReadFile) Read(p []byte) (int, error) {
	f.reads++
	if f.reads > 1 {
		return 0, errors.New("input/output error")
	}
	if len(p) > 4 {
		p = p[:4]
	}
	return f.File.Read(p)
}

type testConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, srv *Server) *testConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr(), 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	t.Cleanup(func() { _ = conn.Close() })

	tc := &testConn{t: t, conn: conn, r: bufio.NewReader(conn)}
	require.Equal(t, "220 Service ready FTP Server Ready", tc.readLine())
	return tc
}

func (c *testConn) send(line string) {
	c.t.Helper()
	c.writeRaw(line + "\r\n")
}

func (c *testConn) writeRaw(s string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(s))
	require.NoError(c.t, err)
}

func (c *testConn) readLine() string {
	c.t.Helper()
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimRight(line, "\r\n")
}

func (c *testConn) readBody() []string {
	c.t.Helper()
	var body []string
	for {
		line := c.readLine()
		if line == "" {
			return body
		}
		body = append(body, line)
	}
}

func (c *testConn) cmd(line string) string {
	c.t.Helper()
	c.send(line)
	return c.readLine()
}

// put uploads data under name and returns the final reply line.
func (c *testConn) put(name, data string) string {
	c.t.Helper()
	reply := c.cmd("PUT " + name)
	if !strings.HasPrefix(reply, "150 ") {
		return reply
	}
	require.Equal(c.t, "READY_FOR_FILE", c.readLine())
	c.writeRaw("FILE_START\r\n" + data + "FILE_END\r\n")
	return c.readLine()
}

// get downloads name. On failure the reply line is returned and ok is
// false.
func (c *testConn) get(name string) (data string, header []string, reply string, ok bool) {
	c.t.Helper()
	reply = c.cmd("GET " + name)
	if !strings.HasPrefix(reply, "150 ") {
		return "", nil, reply, false
	}
	header = c.readBody()
	require.Len(c.t, header, 2)

	var size int
	_, err := fmt.Sscanf(header[1], "Size: %d bytes", &size)
	require.NoError(c.t, err)

	require.Equal(c.t, "FILE_START", c.readLine())
	buf := make([]byte, size)
	_, err = io.ReadFull(c.r, buf)
	require.NoError(c.t, err)
	require.Equal(c.t, "FILE_END", c.readLine())
	return string(buf), header, reply, true
}

func (c *testConn) expectClosed() {
	c.t.Helper()
	_, err := c.r.ReadByte()
	require.Error(c.t, err)
}

func TestHelloScenario(t *testing.T) {
	srv, _ := startServer(t, Config{})
	c := dial(t, srv)

	reply := c.put("a.txt", "hello")
	assert.Equal(t, "226 Closing data connection, file transfer successful File a.txt received and saved successfully", reply)

	data, header, _, ok := c.get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", data)
	assert.Equal(t, []string{"File: a.txt", "Size: 5 bytes"}, header)

	assert.Equal(t, "200 Command OK File a.txt deleted successfully", c.cmd("DEL a.txt"))

	_, _, reply, ok = c.get("a.txt")
	assert.False(t, ok)
	assert.True(t, strings.HasPrefix(reply, "550 "), reply)
	assert.Contains(t, reply, "File not found: a.txt")
}

func TestPutRejectsExistingName(t *testing.T) {
	srv, st := startServer(t, Config{})
	c := dial(t, srv)

	require.True(t, strings.HasPrefix(c.put("dup.bin", "one"), "226 "))
	reply := c.cmd("PUT dup.bin")
	assert.True(t, strings.HasPrefix(reply, "550 "), reply)
	assert.Contains(t, reply, "File already exists: dup.bin")

	// The original content is untouched and the session still works.
	data, _, _, ok := c.get("dup.bin")
	require.True(t, ok)
	assert.Equal(t, "one", data)

	exists, err := afero.Exists(st.Fs(), storeRoot+"/dup.bin"+store.PartSuffix)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPutGetBinaryRoundTrip(t *testing.T) {
	srv, _ := startServer(t, Config{ChunkSize: 512})
	c := dial(t, srv)

	payload := make([]byte, 64<<10+7)
	for i := range payload {
		payload[i] = byte(i * 31)
	}
	// CRLF and partial sentinels inside the payload are plain data.
	copy(payload[100:], "FILE_EN\r\nFILE_START\r\n")

	require.True(t, strings.HasPrefix(c.put("blob.bin", string(payload)), "226 "))
	data, header, _, ok := c.get("blob.bin")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("Size: %d bytes", len(payload)), header[1])
	assert.Equal(t, string(payload), data)
}

func TestPutSentinelsSplitAcrossWrites(t *testing.T) {
	srv, st := startServer(t, Config{})
	c := dial(t, srv)

	require.True(t, strings.HasPrefix(c.cmd("PUT split.txt"), "150 "))
	require.Equal(t, "READY_FOR_FILE", c.readLine())

	for _, part := range []string{"noise", "FILE_ST", "ART\r\nab", "cFILE_E", "ND\r", "\nSYST\r\n"} {
		c.writeRaw(part)
		time.Sleep(5 * time.Millisecond)
	}

	assert.True(t, strings.HasPrefix(c.readLine(), "226 "))
	// The command sent in the same write as FILE_END is still processed.
	assert.True(t, strings.HasPrefix(c.readLine(), "200 Command OK distd ("))

	got, err := afero.ReadFile(st.Fs(), storeRoot+"/split.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestInterruptedPutLeavesNothing(t *testing.T) {
	srv, st := startServer(t, Config{})
	c := dial(t, srv)

	require.True(t, strings.HasPrefix(c.cmd("PUT partial.txt"), "150 "))
	require.Equal(t, "READY_FOR_FILE", c.readLine())
	c.writeRaw("FILE_START\r\nsome bytes but no end")
	require.NoError(t, c.conn.Close())

	require.Eventually(t, func() bool { return srv.ActiveClients() == 0 }, 2*time.Second, 10*time.Millisecond)

	for _, name := range []string{"partial.txt", "partial.txt" + store.PartSuffix} {
		exists, err := afero.Exists(st.Fs(), storeRoot+"/"+name)
		require.NoError(t, err)
		assert.False(t, exists, name)
	}
	assert.Equal(t, uint64(0), srv.Stats().Snapshot().FilesTransferred)
	assert.Equal(t, uint64(1), srv.Stats().Snapshot().Errors)
}

func TestPutReadTimeoutKeepsSession(t *testing.T) {
	srv, st := startServer(t, Config{Timeouts: TimeoutsConfig{Read: 300 * time.Millisecond}})
	c := dial(t, srv)

	require.True(t, strings.HasPrefix(c.cmd("PUT stalled.txt"), "150 "))
	require.Equal(t, "READY_FOR_FILE", c.readLine())
	c.writeRaw("FILE_START\r\nabc")

	assert.Equal(t, "451 Requested action aborted, local error File transfer interrupted or incomplete", c.readLine())

	for _, name := range []string{"stalled.txt", "stalled.txt" + store.PartSuffix} {
		exists, err := afero.Exists(st.Fs(), storeRoot+"/"+name)
		require.NoError(t, err)
		assert.False(t, exists, name)
	}
	assert.Equal(t, uint64(1), srv.Stats().Snapshot().Errors)

	assert.Equal(t, "200 Command OK "+SystemType(), c.cmd("SYST"))
	assert.True(t, strings.HasPrefix(c.put("after.txt", "ok"), "226 "))
	assert.Equal(t, 1, srv.ActiveClients())
}

func TestGetReadFailureKeepsSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, storeRoot+"/data.bin", []byte("0123456789"), 0o644))
	st, err := store.New(failingReadFs{Fs: fs, name: "data.bin"}, storeRoot)
	require.NoError(t, err)
	srv := startServerOn(t, Config{}, st)
	c := dial(t, srv)

	require.True(t, strings.HasPrefix(c.cmd("GET data.bin"), "150 "))
	assert.Equal(t, []string{"File: data.bin", "Size: 10 bytes"}, c.readBody())
	require.Equal(t, "FILE_START", c.readLine())

	partial := make([]byte, 4)
	_, err = io.ReadFull(c.r, partial)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(partial))

	// LOCAL_ERROR takes the place of FILE_END.
	reply := c.readLine()
	assert.True(t, strings.HasPrefix(reply, "451 "), reply)
	assert.Contains(t, reply, "input/output error")

	assert.Equal(t, "200 Command OK "+SystemType(), c.cmd("SYST"))

	snap := srv.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, uint64(0), snap.FilesTransferred)

	conns := srv.registry.Snapshot()
	require.Len(t, conns, 1)
	assert.False(t, conns[0].TransferInProgress())
}

func TestPutExceedingMaxFileSize(t *testing.T) {
	srv, st := startServer(t, Config{MaxFileSize: 4})
	c := dial(t, srv)

	reply := c.put("big.txt", "0123456789")
	assert.True(t, strings.HasPrefix(reply, "552 "), reply)

	exists, err := afero.Exists(st.Fs(), storeRoot+"/big.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	// The payload was drained, so the session is still in sync.
	assert.True(t, strings.HasPrefix(c.put("small.txt", "0123"), "226 "))
}

func TestDelete(t *testing.T) {
	srv, st := startServer(t, Config{})
	c := dial(t, srv)

	reply := c.cmd("DEL never.txt")
	assert.True(t, strings.HasPrefix(reply, "550 "), reply)

	require.NoError(t, st.Fs().Mkdir(storeRoot+"/dir", 0o755))
	reply = c.cmd("DEL dir")
	assert.True(t, strings.HasPrefix(reply, "550 "), reply)
	assert.Contains(t, reply, "dir is a directory, not a file")

	assert.Equal(t, "501 Syntax error in parameters or arguments Filename required", c.cmd("DEL"))
}

func TestList(t *testing.T) {
	srv, st := startServer(t, Config{})
	c := dial(t, srv)

	assert.Equal(t, "200 Command OK No files in directory", c.cmd("LIST"))
	assert.Empty(t, c.readBody())

	require.True(t, strings.HasPrefix(c.put("b.txt", "12345"), "226 "))
	require.True(t, strings.HasPrefix(c.put("a.txt", "x"), "226 "))
	require.NoError(t, afero.WriteFile(st.Fs(), storeRoot+"/c.txt"+store.PartSuffix, []byte("tmp"), 0o644))

	assert.Equal(t, "200 Command OK", c.cmd("list"))
	rows := c.readBody()
	require.Len(t, rows, 2)

	a, err := st.Stat("a.txt")
	require.NoError(t, err)
	assert.Equal(t, FormatListRow(a), rows[0])
	assert.True(t, strings.HasPrefix(rows[1], "FILE   5 bytes"), rows[1])
	assert.True(t, strings.HasSuffix(rows[1], " b.txt"), rows[1])
}

func TestStat(t *testing.T) {
	srv, _ := startServer(t, Config{})
	c := dial(t, srv)

	assert.Equal(t, "200 Command OK Server Statistics:", c.cmd("STAT"))
	body := c.readBody()
	joined := strings.Join(body, "\n")
	assert.Contains(t, joined, "  Uptime: ")
	assert.Contains(t, joined, "  Commands processed: 1")
	assert.Contains(t, joined, "  Active clients: 1")
	assert.Contains(t, joined, "Your Connection:")
	assert.Contains(t, joined, "  Connected from: "+c.conn.LocalAddr().String())
	assert.Contains(t, joined, "  Commands executed: 1")
}

func TestCommandErrors(t *testing.T) {
	srv, _ := startServer(t, Config{MaxLineLength: 64})
	c := dial(t, srv)

	tests := []struct {
		line string
		want string
	}{
		{"", "500 Syntax error, command unrecognized"},
		{"   ", "500 Syntax error, command unrecognized"},
		{"FOO bar", "502 Command not implemented Command 'FOO' not implemented"},
		{"GET", "501 Syntax error in parameters or arguments Filename required"},
		{"put", "501 Syntax error in parameters or arguments Filename required"},
		{strings.Repeat("X", 200), "500 Syntax error, command unrecognized Command line too long"},
		{"GET ../etc/passwd", "553 Requested action not taken, file name not allowed File name not allowed: ../etc/passwd"},
		{"PUT x.part", "553 Requested action not taken, file name not allowed File name not allowed: x.part"},
		{"syst", "200 Command OK " + SystemType()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.cmd(tt.line), "line %q", tt.line)
	}
}

func TestQuit(t *testing.T) {
	srv, _ := startServer(t, Config{})
	c := dial(t, srv)

	assert.Equal(t, "221 Service closing control connection Goodbye", c.cmd("QUIT"))
	c.expectClosed()
	require.Eventually(t, func() bool { return srv.ActiveClients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestIdleConnectionEvicted(t *testing.T) {
	srv, _ := startServer(t, Config{Timeouts: TimeoutsConfig{
		Idle:      150 * time.Millisecond,
		IdleSweep: 25 * time.Millisecond,
	}})
	c := dial(t, srv)

	assert.Equal(t, "221 Service closing control connection Connection timed out due to inactivity", c.readLine())
	c.expectClosed()
	require.Eventually(t, func() bool { return srv.ActiveClients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTransferNotEvicted(t *testing.T) {
	srv, st := startServer(t, Config{Timeouts: TimeoutsConfig{
		Idle:      100 * time.Millisecond,
		IdleSweep: 20 * time.Millisecond,
	}})
	c := dial(t, srv)

	require.True(t, strings.HasPrefix(c.cmd("PUT slow.txt"), "150 "))
	require.Equal(t, "READY_FOR_FILE", c.readLine())
	c.writeRaw("FILE_START\r\nabc")

	// Several idle timeouts pass with no bytes on the wire.
	time.Sleep(400 * time.Millisecond)

	c.writeRaw("defFILE_END\r\n")
	assert.True(t, strings.HasPrefix(c.readLine(), "226 "))

	got, err := afero.ReadFile(st.Fs(), storeRoot+"/slow.txt")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got))
}

func TestSweepSkipsTransferringConnection(t *testing.T) {
	srv := New(Config{}, newMemStore(t), nil)

	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	go func() { _, _ = io.Copy(io.Discard, clientSide) }()

	c := newConnection(srv, serverSide)
	srv.registry.Add(c)

	future := time.Now().Add(time.Hour)
	require.True(t, c.beginTransfer())
	assert.Equal(t, 0, srv.sweepIdle(future))
	assert.Equal(t, 1, srv.ActiveClients())

	c.endTransfer()
	assert.Equal(t, 0, srv.sweepIdle(time.Now()))
	assert.Equal(t, 1, srv.sweepIdle(future))
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 0, srv.ActiveClients())

	// An evicted connection cannot start a transfer.
	assert.False(t, c.beginTransfer())
}

func TestConcurrentPuts(t *testing.T) {
	srv, _ := startServer(t, Config{})
	const n = 8

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return rawPut(srv.Addr(), fmt.Sprintf("file-%d.txt", i), strings.Repeat(fmt.Sprint(i), 1000+i))
		})
	}
	require.NoError(t, g.Wait())

	c := dial(t, srv)
	for i := 0; i < n; i++ {
		data, _, _, ok := c.get(fmt.Sprintf("file-%d.txt", i))
		require.True(t, ok)
		assert.Equal(t, strings.Repeat(fmt.Sprint(i), 1000+i), data)
	}
	assert.Equal(t, uint64(2*n), srv.Stats().Snapshot().FilesTransferred)
}

// rawPut uploads one file on its own connection without using testing
// helpers, so it can run from any goroutine.
func rawPut(addr, name, data string) error {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	r := bufio.NewReader(conn)

	expect := func(prefix string) error {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		if !strings.HasPrefix(line, prefix) {
			return fmt.Errorf("%s: got %q, want prefix %q", name, line, prefix)
		}
		return nil
	}

	if err := expect("220 "); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(conn, "PUT %s\r\n", name); err != nil {
		return err
	}
	if err := expect("150 "); err != nil {
		return err
	}
	if err := expect("READY_FOR_FILE"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(conn, "FILE_START\r\n%sFILE_END\r\n", data); err != nil {
		return err
	}
	if err := expect("226 "); err != nil {
		return err
	}
	_, err = fmt.Fprint(conn, "QUIT\r\n")
	return err
}

func TestFilesTransferredCount(t *testing.T) {
	srv, _ := startServer(t, Config{})
	c := dial(t, srv)
	baseline := srv.Stats().Snapshot().FilesTransferred

	require.True(t, strings.HasPrefix(c.put("k1", "a"), "226 "))
	require.True(t, strings.HasPrefix(c.put("k2", "b"), "226 "))
	_, _, _, ok := c.get("k1")
	require.True(t, ok)
	_, _, _, ok = c.get("missing")
	require.False(t, ok)

	assert.Equal(t, baseline+3, srv.Stats().Snapshot().FilesTransferred)
}

func TestStopSaysGoodbye(t *testing.T) {
	srv, _ := startServer(t, Config{})
	c := dial(t, srv)
	require.Eventually(t, func() bool { return srv.ActiveClients() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	assert.Equal(t, "221 Service closing control connection Server shutting down", c.readLine())
	c.expectClosed()
	assert.False(t, srv.IsRunning())
}
