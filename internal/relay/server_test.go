package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/webchat/webchat/internal/message"
	"github.com/webchat/webchat/internal/message/repository"
	"github.com/webchat/webchat/pkg/metrics"
)

// startServer runs a relay listener on a loopback port and returns its address.
func startServer(t *testing.T, sink repository.Sink) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(ln.Addr().String(), sink, time.Second).Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("relay server did not stop")
		}
	})
	return ln.Addr().String()
}

func sendRaw(t *testing.T, addr, payload string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	if payload != "" {
		_, err = conn.Write([]byte(payload))
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())
}

func TestServerPersistsFrame(t *testing.T) {
	repo := repository.NewMemoryRepo()
	addr := startServer(t, repo)

	sendRaw(t, addr, `{"username":"alice","message":"hello"}`+"\n")

	require.Eventually(t, func() bool { return repo.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	rec := repo.List()[0]
	require.Equal(t, "alice", rec.Username)
	require.Equal(t, "hello", rec.Message)
	require.NotEmpty(t, rec.Date)
}

func TestServerDiscardsMalformedAndKeepsAccepting(t *testing.T) {
	repo := repository.NewMemoryRepo()
	addr := startServer(t, repo)
	before := testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeMalformed))

	sendRaw(t, addr, "not json\n")
	sendRaw(t, addr, `{"username":"bob","message":" ok "}`+"\n")

	require.Eventually(t, func() bool { return repo.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "ok", repo.List()[0].Message)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeMalformed)))
}

func TestServerDropsNonUTF8Frame(t *testing.T) {
	repo := repository.NewMemoryRepo()
	addr := startServer(t, repo)
	before := testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeMalformed))

	sendRaw(t, addr, "{\"username\":\"a\",\"message\":\"x\xff\xfey\"}\n")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeMalformed)) == before+1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, repo.Len())
}

func TestServerIgnoresEmptyConnection(t *testing.T) {
	repo := repository.NewMemoryRepo()
	addr := startServer(t, repo)
	before := testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeEmpty))

	sendRaw(t, addr, "")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeEmpty)) == before+1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, repo.Len())
}

func TestServerReadsOnlyFirstLine(t *testing.T) {
	repo := repository.NewMemoryRepo()
	addr := startServer(t, repo)

	sendRaw(t, addr, `{"message":"first"}`+"\n"+`{"message":"second"}`+"\n")
	sendRaw(t, addr, `{"message":"third"}`+"\n")

	require.Eventually(t, func() bool { return repo.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	list := repo.List()
	require.Equal(t, "first", list[0].Message)
	require.Equal(t, "third", list[1].Message)
}

func TestServerAcceptsUnterminatedFrame(t *testing.T) {
	repo := repository.NewMemoryRepo()
	addr := startServer(t, repo)

	sendRaw(t, addr, `{"username":"eve","message":"no newline"}`)
	require.Eventually(t, func() bool { return repo.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerPreservesArrivalOrder(t *testing.T) {
	repo := repository.NewMemoryRepo()
	addr := startServer(t, repo)

	want := []string{"m0", "m1", "m2", "m3", "m4"}
	for _, m := range want {
		sendRaw(t, addr, `{"message":"`+m+`"}`+"\n")
	}
	require.Eventually(t, func() bool { return repo.Len() == len(want) }, 2*time.Second, 10*time.Millisecond)
	for i, rec := range repo.List() {
		require.Equal(t, want[i], rec.Message)
	}
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) InsertOne(ctx context.Context, rec *message.StoredRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("store unavailable")
}

func (f *failingSink) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestServerSurvivesInsertFailure(t *testing.T) {
	sink := &failingSink{}
	addr := startServer(t, sink)
	before := testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeFailed))

	sendRaw(t, addr, `{"message":"a"}`+"\n")
	sendRaw(t, addr, `{"message":"b"}`+"\n")

	require.Eventually(t, func() bool { return sink.Calls() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.RelayFrames.WithLabelValues(metrics.OutcomeFailed)) == before+2
	}, 2*time.Second, 10*time.Millisecond)
}

type panickingSink struct{}

func (panickingSink) InsertOne(ctx context.Context, rec *message.StoredRecord) error {
	panic("boom")
}

func TestServerRecoversFromSinkPanic(t *testing.T) {
	addr := startServer(t, panickingSink{})
	sendRaw(t, addr, `{"message":"a"}`+"\n")

	// the listener must still accept
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerShutdownClosesStalledConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(ln.Addr().String(), repository.NewMemoryRepo(), time.Second).Serve(ctx, ln) }()

	// a peer that connects and never writes blocks the listener
	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenAndServeBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = NewServer(ln.Addr().String(), repository.NewMemoryRepo(), time.Second).ListenAndServe(context.Background())
	require.Error(t, err)
}
