// Package cache is the single authoritative in-memory view of "the session
// I am currently part of", mirrored to durable local storage for restart
// survival.
//
// The cache is the sole write point for session state: the command client
// and the stream consumer feed it through Set/Merge, presentation code only
// reads. Writes apply in the order their producing operations complete
// (last write wins); there is no version fencing between command responses
// and pushed snapshots.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"quizlive/cmd/internal/live"
	"quizlive/cmd/internal/quiz"
)

const recordLive = "currentLive"

// Records is the durable storage the cache mirrors into.
type Records interface {
	Get(ctx context.Context, name string) (body []byte, found bool, err error)
	Put(ctx context.Context, name string, body []byte) error
	Delete(ctx context.Context, name string) error
}

// Partial carries the fields of a narrow update. Nil fields are left
// untouched; set fields overwrite shallowly.
type Partial struct {
	Status      *live.LiveStatus
	Teacher     *live.Teacher
	Lobby       []string
	Engagement  *live.Engagement
	Evaluation  *live.Evaluation
	Quiz        *quiz.Quiz
	StartedOn   *time.Time
	UpdateOn    *time.Time
	CompletedOn *time.Time
}

// Cache holds at most one live session. Safe for concurrent use.
type Cache struct {
	log     *slog.Logger
	records Records

	mu      sync.RWMutex
	current live.Live
	ok      bool
}

// New constructs a Cache and loads the persisted session if one exists.
// A corrupt durable record degrades to "no prior session".
func New(log *slog.Logger, records Records) *Cache {
	c := &Cache{log: log, records: records}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, found, err := records.Get(ctx, recordLive)
	if err != nil {
		log.Warn("cache.load.fail", "err", err)
		return c
	}
	if !found {
		return c
	}

	var l live.Live
	if err := json.Unmarshal(body, &l); err != nil || l.IsZero() {
		log.Warn("cache.load.parse.fail", "err", err)
		return c
	}
	c.current, c.ok = l, true
	return c
}

// Get returns the current session. It never blocks on I/O.
func (c *Cache) Get() (live.Live, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.ok
}

// Set replaces the session wholesale and mirrors it to durable storage.
func (c *Cache) Set(ctx context.Context, l live.Live) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current, c.ok = l, true
	return c.persistLocked(ctx)
}

// Merge shallow-merges the set fields of p into the current session.
// Without a current session it is a no-op.
func (c *Cache) Merge(ctx context.Context, p Partial) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ok {
		return nil
	}

	if p.Status != nil {
		c.current.Status = *p.Status
	}
	if p.Teacher != nil {
		c.current.Teacher = *p.Teacher
	}
	if p.Lobby != nil {
		c.current.Lobby = p.Lobby
	}
	if p.Engagement != nil {
		c.current.Engagement = *p.Engagement
	}
	if p.Evaluation != nil {
		c.current.Evaluation = *p.Evaluation
	}
	if p.Quiz != nil {
		c.current.Quiz = *p.Quiz
	}
	if p.StartedOn != nil {
		c.current.StartedOn = p.StartedOn
	}
	if p.UpdateOn != nil {
		c.current.UpdateOn = p.UpdateOn
	}
	if p.CompletedOn != nil {
		c.current.CompletedOn = p.CompletedOn
	}

	return c.persistLocked(ctx)
}

// SetTeacher overlays the teacher identity, e.g. once it resolves after join.
func (c *Cache) SetTeacher(ctx context.Context, t live.Teacher) error {
	return c.Merge(ctx, Partial{Teacher: &t})
}

// Clear drops both the in-memory and the durable copy.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current, c.ok = live.Live{}, false
	if err := c.records.Delete(ctx, recordLive); err != nil {
		c.log.Warn("cache.clear.fail", "err", err)
		return err
	}
	return nil
}

func (c *Cache) persistLocked(ctx context.Context) error {
	body, err := json.Marshal(c.current)
	if err != nil {
		c.log.Error("cache.persist.encode.fail", "err", err)
		return err
	}
	if err := c.records.Put(ctx, recordLive, body); err != nil {
		c.log.Warn("cache.persist.fail", "key", c.current.Key, "err", err)
		return err
	}
	return nil
}
