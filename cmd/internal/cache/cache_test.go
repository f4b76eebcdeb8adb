package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"quizlive/cmd/internal/live"
)

type fakeRecords struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newFakeRecords() *fakeRecords { return &fakeRecords{m: make(map[string][]byte)} }

func (f *fakeRecords) Get(_ context.Context, name string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.m[name]
	return b, ok, nil
}

func (f *fakeRecords) Put(_ context.Context, name string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[name] = append([]byte(nil), body...)
	return nil
}

func (f *fakeRecords) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, name)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleLive(key string) live.Live {
	return live.Live{
		Key:    key,
		Status: live.StatusCreated,
		Teacher: live.Teacher{
			Login:   "TEACHERAA",
			Code:    "CODEAAAA",
			Control: live.Control{CurrentPosition: live.PositionNotStarted},
		},
		Lobby: []string{},
	}
}

// durableMirror decodes the persisted record for comparison with memory.
func durableMirror(t *testing.T, records *fakeRecords) (live.Live, bool) {
	t.Helper()

	body, found, err := records.Get(context.Background(), recordLive)
	if err != nil {
		t.Fatalf("records.Get: %v", err)
	}
	if !found {
		return live.Live{}, false
	}
	var l live.Live
	if err := json.Unmarshal(body, &l); err != nil {
		t.Fatalf("decode durable record: %v", err)
	}
	return l, true
}

func TestSetMergeGetSequence(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	c := New(testLogger(), records)
	ctx := context.Background()

	if _, ok := c.Get(); ok {
		t.Fatalf("fresh cache must be empty")
	}

	if err := c.Set(ctx, sampleLive("L1")); err != nil {
		t.Fatalf("set: %v", err)
	}

	running := live.StatusRunning
	if err := c.Merge(ctx, Partial{Status: &running, Lobby: []string{"pupil#01"}}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got, ok := c.Get()
	if !ok {
		t.Fatalf("cache should hold a session")
	}
	if got.Key != "L1" || got.Status != live.StatusRunning {
		t.Fatalf("got key=%q status=%s", got.Key, got.Status)
	}
	if len(got.Lobby) != 1 || got.Lobby[0] != "pupil#01" {
		t.Fatalf("lobby=%v", got.Lobby)
	}
	// Untouched fields survive the merge.
	if got.Teacher.Login != "TEACHERAA" {
		t.Fatalf("merge must not clear teacher: %+v", got.Teacher)
	}

	// Durable storage mirrors memory after every call.
	mirror, found := durableMirror(t, records)
	if !found {
		t.Fatalf("durable record missing")
	}
	if !reflect.DeepEqual(mirror, got) {
		t.Fatalf("durable mirror diverged:\n  mem=%+v\n  dur=%+v", got, mirror)
	}
}

func TestLaterSetOverridesMerge(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	c := New(testLogger(), records)
	ctx := context.Background()

	_ = c.Set(ctx, sampleLive("L1"))
	running := live.StatusRunning
	_ = c.Merge(ctx, Partial{Status: &running})

	// A later full replace wins over any previous overlay.
	next := sampleLive("L1")
	next.Status = live.StatusCompleted
	_ = c.Set(ctx, next)

	got, _ := c.Get()
	if got.Status != live.StatusCompleted {
		t.Fatalf("status=%s want=%s", got.Status, live.StatusCompleted)
	}
}

func TestMergeWithoutSessionIsNoOp(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	c := New(testLogger(), records)

	running := live.StatusRunning
	if err := c.Merge(context.Background(), Partial{Status: &running}); err != nil {
		t.Fatalf("merge on empty cache: %v", err)
	}
	if _, ok := c.Get(); ok {
		t.Fatalf("merge must not create a session")
	}
	if _, found := durableMirror(t, records); found {
		t.Fatalf("merge on empty cache must not persist anything")
	}
}

func TestSetTeacher(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	c := New(testLogger(), records)
	ctx := context.Background()

	_ = c.Set(ctx, sampleLive("L1"))
	if err := c.SetTeacher(ctx, live.Teacher{Login: "NEWTEACH", Code: "NEWCODEE"}); err != nil {
		t.Fatalf("set teacher: %v", err)
	}

	got, _ := c.Get()
	if got.Teacher.Login != "NEWTEACH" {
		t.Fatalf("teacher=%+v", got.Teacher)
	}
}

func TestClearDropsBothCopies(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	c := New(testLogger(), records)
	ctx := context.Background()

	_ = c.Set(ctx, sampleLive("L1"))
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if _, ok := c.Get(); ok {
		t.Fatalf("memory should be empty after clear")
	}
	if _, found := durableMirror(t, records); found {
		t.Fatalf("durable record should be gone after clear")
	}
}

func TestStartupLoadsPersistedSession(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	first := New(testLogger(), records)
	_ = first.Set(context.Background(), sampleLive("L9"))

	second := New(testLogger(), records)
	got, ok := second.Get()
	if !ok || got.Key != "L9" {
		t.Fatalf("restart should load persisted session, got key=%q ok=%v", got.Key, ok)
	}
}

func TestStartupDegradesOnCorruptRecord(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	_ = records.Put(context.Background(), recordLive, []byte("{definitely not json"))

	c := New(testLogger(), records)
	if _, ok := c.Get(); ok {
		t.Fatalf("corrupt record must load as no prior session")
	}
}
