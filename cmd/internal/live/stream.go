package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"quizlive/cmd/internal/faults"
	"quizlive/cmd/internal/metrics"
)

// StreamState is the lifecycle state of a push channel.
type StreamState int32

const (
	StreamClosed StreamState = iota
	StreamConnecting
	StreamOpen
	StreamError
)

func (s StreamState) String() string {
	switch s {
	case StreamClosed:
		return "CLOSED"
	case StreamConnecting:
		return "CONNECTING"
	case StreamOpen:
		return "OPEN"
	case StreamError:
		return "ERROR"
	default:
		return fmt.Sprintf("StreamState(%d)", int32(s))
	}
}

const (
	defaultDialTimeout = 10 * time.Second
	defaultRedialBase  = 500 * time.Millisecond
	defaultRedialCap   = 15 * time.Second
	maxFrameBytes      = 1 << 20
)

// StreamConfig holds the stream consumer's runtime configuration.
//
// The reconnect policy is deliberately explicit: after a transport error the
// consumer redials up to MaxRedials times with exponential backoff between
// RedialBase and RedialCap. MaxRedials = 0 disables redialing entirely, in
// which case the first transport error ends the channel.
type StreamConfig struct {
	// BaseURL is the live service base; ws(s) is derived from http(s).
	BaseURL string

	DialTimeout time.Duration
	MaxRedials  int
	RedialBase  time.Duration
	RedialCap   time.Duration
}

// Stream consumes the server-push channel of one live session. One Stream
// owns at most one channel; reuse after Close requires a new Open.
//
// Malformed frames are logged and dropped without terminating the channel.
// When the redial budget is exhausted the caller's OnError (if supplied)
// decides what happens next; the consumer never dials beyond its budget.
type Stream struct {
	cfg     StreamConfig
	log     *slog.Logger
	creds   Credentials
	metrics *metrics.Metrics

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStream constructs a stream consumer.
func NewStream(cfg StreamConfig, log *slog.Logger, creds Credentials, m *metrics.Metrics) *Stream {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RedialBase <= 0 {
		cfg.RedialBase = defaultRedialBase
	}
	if cfg.RedialCap <= 0 {
		cfg.RedialCap = defaultRedialCap
	}
	return &Stream{cfg: cfg, log: log, creds: creds, metrics: m}
}

// State returns the current channel state.
func (s *Stream) State() StreamState {
	return StreamState(s.state.Load())
}

// Open establishes the push channel for liveKey and starts delivering
// decoded snapshots to onSnapshot. It fails closed without a credential
// and returns ErrStreamOpen when a channel is already up.
//
// onSnapshot runs on the stream's goroutine; keep it fast (typically one
// cache.Set). onError is optional; when nil, terminal errors are logged.
func (s *Stream) Open(ctx context.Context, liveKey string, onSnapshot func(Live), onError func(error)) error {
	cred, _, ok := s.creds.Current()
	if !ok || cred.IsZero() {
		return faults.New(faults.InvalidToken, "no credential for live stream", "run EnsureAnonymous first", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(StreamClosed), int32(StreamConnecting)) {
		return ErrStreamOpen
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, liveKey, cred.Token, onSnapshot, onError)
	return nil
}

// Close tears the channel down. It is idempotent and safe to call from any
// goroutine; it returns once the stream goroutine has exited.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Stream) run(ctx context.Context, liveKey, bearer string, onSnapshot func(Live), onError func(error)) {
	defer close(s.done)
	defer s.state.Store(int32(StreamClosed))

	redials := 0
	for {
		err := s.consume(ctx, liveKey, bearer, onSnapshot, &redials)
		if err == nil {
			// Channel ended by Close or context cancellation.
			return
		}

		s.state.Store(int32(StreamError))

		if redials >= s.cfg.MaxRedials {
			fault := faults.New(faults.ConnectionFailed, "live stream lost", "reopen the stream or check live service availability", err)
			if onError != nil {
				onError(fault)
			} else {
				s.log.Error("stream.lost", "key", liveKey, "redials", redials, "err", err)
			}
			return
		}

		redials++
		s.metrics.CountRedial()
		s.log.Info("stream.redial", "key", liveKey, "attempt", redials, "err", err)

		if !sleepCtx(ctx, backoff(s.cfg.RedialBase, s.cfg.RedialCap, redials)) {
			return
		}
		s.state.Store(int32(StreamConnecting))
	}
}

// consume dials once and reads frames until the channel dies. A nil return
// means clean shutdown; any error is a transport failure.
func (s *Stream) consume(ctx context.Context, liveKey, bearer string, onSnapshot func(Live), redials *int) error {
	u := fmt.Sprintf("%s/live/v1/get/live/stream/%s/%s", s.cfg.BaseURL, qryGetLiveStream, url.PathEscape(liveKey))

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, u, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + bearer}},
	})
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(maxFrameBytes)
	s.log.Info("stream.connected", "key", liveKey)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		// First event moves the channel to OPEN; a healthy frame also
		// resets the redial budget after a successful reconnect.
		s.state.Store(int32(StreamOpen))

		var snapshot Live
		if err := json.Unmarshal(data, &snapshot); err != nil || snapshot.IsZero() {
			s.metrics.CountFrame(false)
			s.log.Warn("stream.frame.drop", "key", liveKey, "bytes", len(data), "err", err)
			continue
		}

		*redials = 0
		s.metrics.CountFrame(true)
		onSnapshot(snapshot)
	}
}

func backoff(base, ceil time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > ceil || d <= 0 {
		return ceil
	}
	return d
}

// sleepCtx waits d unless ctx ends first; it reports whether the wait ran out.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
