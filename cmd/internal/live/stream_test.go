package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"quizlive/cmd/internal/faults"
)

// pushServer is a websocket test server scripting raw frames per session.
type pushServer struct {
	frames [][]byte

	mu       sync.Mutex
	accepted int
}

func (p *pushServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

		p.mu.Lock()
		p.accepted++
		p.mu.Unlock()

		ctx := r.Context()
		for _, frame := range p.frames {
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}

		// Hold the channel open until the client goes away.
		_, _, _ = conn.Read(ctx)
	})
}

func runningFrame(t *testing.T, key string, position int) []byte {
	t.Helper()

	l := createdSnapshot(key, 3)
	l.Status = StatusRunning
	l.Teacher.Control.CurrentPosition = position
	body, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return body
}

func TestStreamDeliversSnapshotsAndDropsMalformedFrames(t *testing.T) {
	t.Parallel()

	push := &pushServer{}
	push.frames = [][]byte{
		runningFrame(t, "L1", 0),
		[]byte("{malformed frame"),
		runningFrame(t, "L1", 1),
	}

	srv := httptest.NewServer(push.handler(t))
	t.Cleanup(srv.Close)

	s := NewStream(StreamConfig{BaseURL: srv.URL, MaxRedials: 0}, testLogger(), studentCreds(), nil)

	var mu sync.Mutex
	var got []Live
	delivered := make(chan struct{}, 8)

	err := s.Open(context.Background(), "L1", func(l Live) {
		mu.Lock()
		got = append(got, l)
		mu.Unlock()
		delivered <- struct{}{}
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)

	for i := 0; i < 2; i++ {
		select {
		case <-delivered:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for snapshots")
		}
	}

	// The malformed frame is dropped without killing the channel.
	if state := s.State(); state != StreamOpen {
		t.Fatalf("state=%s want=OPEN", state)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("snapshots=%d want=2", len(got))
	}
	if got[0].CurrentPosition() != 0 || got[1].CurrentPosition() != 1 {
		t.Fatalf("positions=%d,%d want=0,1", got[0].CurrentPosition(), got[1].CurrentPosition())
	}
}

func TestStreamOpenFailsClosedWithoutCredential(t *testing.T) {
	t.Parallel()

	s := NewStream(StreamConfig{BaseURL: "http://127.0.0.1:0"}, testLogger(), fakeCreds{}, nil)

	err := s.Open(context.Background(), "L1", func(Live) {}, nil)
	if faults.KindOf(err) != faults.InvalidToken {
		t.Fatalf("err=%v want INVALID_TOKEN fault", err)
	}
	if s.State() != StreamClosed {
		t.Fatalf("state=%s want=CLOSED", s.State())
	}
}

func TestStreamRejectsSecondOpen(t *testing.T) {
	t.Parallel()

	push := &pushServer{frames: [][]byte{runningFrame(t, "L1", 0)}}
	srv := httptest.NewServer(push.handler(t))
	t.Cleanup(srv.Close)

	s := NewStream(StreamConfig{BaseURL: srv.URL}, testLogger(), studentCreds(), nil)

	if err := s.Open(context.Background(), "L1", func(Live) {}, nil); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Open(context.Background(), "L1", func(Live) {}, nil); !errors.Is(err, ErrStreamOpen) {
		t.Fatalf("second Open err=%v want ErrStreamOpen", err)
	}
}

func TestStreamExhaustedRedialBudgetReachesOnError(t *testing.T) {
	t.Parallel()

	// A server that is already gone forces dial failures.
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	s := NewStream(StreamConfig{
		BaseURL:     base,
		DialTimeout: time.Second,
		MaxRedials:  2,
		RedialBase:  5 * time.Millisecond,
		RedialCap:   10 * time.Millisecond,
	}, testLogger(), studentCreds(), nil)

	errCh := make(chan error, 1)
	err := s.Open(context.Background(), "L1", func(Live) {
		t.Errorf("no snapshot expected")
	}, func(err error) {
		errCh <- err
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	select {
	case got := <-errCh:
		if faults.KindOf(got) != faults.ConnectionFailed {
			t.Fatalf("terminal err=%v want CONNECTION_FAILED fault", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for terminal error")
	}

	s.Close()
	if s.State() != StreamClosed {
		t.Fatalf("state=%s want=CLOSED after exhaustion", s.State())
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	push := &pushServer{frames: [][]byte{runningFrame(t, "L1", 0)}}
	srv := httptest.NewServer(push.handler(t))
	t.Cleanup(srv.Close)

	s := NewStream(StreamConfig{BaseURL: srv.URL}, testLogger(), studentCreds(), nil)
	if err := s.Open(context.Background(), "L1", func(Live) {}, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.Close()
	s.Close()
	if s.State() != StreamClosed {
		t.Fatalf("state=%s want=CLOSED", s.State())
	}
}
