// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"
)

// DefaultSharedTimeout bounds a shared upstream search when none is set.
const DefaultSharedTimeout = 2 * time.Minute

// CachedSearcher memoizes successful responses of another Searcher in an
// in-memory SQLite database that lives only as long as the process. Parallel
// workers asking the same question share one upstream call. Failures are
// never cached.
type CachedSearcher struct {
	// Timeout bounds a shared upstream call. The call is detached from the
	// caller that started it, so one worker giving up does not fail the
	// others waiting on the same query.
	Timeout time.Duration

	next   Searcher
	db     *sql.DB
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedSearcher opens a private in-memory database named after runID
// (a fresh uuid when empty) and wraps next.
func NewCachedSearcher(next Searcher, runID string) (*CachedSearcher, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	dsn := fmt.Sprintf("file:search-cache-%s?mode=memory&cache=shared", runID)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening search cache: %w", err)
	}
	// A shared-cache memory database disappears with its last connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	c := &CachedSearcher{Timeout: DefaultSharedTimeout, next: next, db: db}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating search cache schema: %w", err)
	}
	return c, nil
}

func (c *CachedSearcher) createSchema() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS responses (
		query_key TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Close releases the database; its contents are discarded.
func (c *CachedSearcher) Close() error {
	return c.db.Close()
}

// Hits returns the number of searches answered from the cache.
func (c *CachedSearcher) Hits() int64 { return c.hits.Load() }

// Misses returns the number of searches forwarded upstream.
func (c *CachedSearcher) Misses() int64 { return c.misses.Load() }

// Search returns a cached response for an identical query or forwards it.
func (c *CachedSearcher) Search(ctx context.Context, q Query) (Response, error) {
	key, err := cacheKey(q)
	if err != nil {
		return Response{}, err
	}

	if resp, ok, err := c.lookup(ctx, key); err != nil {
		return Response{}, err
	} else if ok {
		c.hits.Add(1)
		return resp, nil
	}

	var executed atomic.Bool
	ch := c.group.DoChan(key, func() (any, error) {
		executed.Store(true)
		c.misses.Add(1)
		callCtx, cancel := c.sharedContext(ctx)
		defer cancel()
		resp, err := c.next.Search(callCtx, q)
		if err != nil {
			return Response{}, err
		}
		if err := c.store(callCtx, key, q.Text, resp); err != nil {
			return Response{}, err
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		if !executed.Load() {
			c.hits.Add(1)
		}
		return res.Val.(Response), nil
	}
}

// sharedContext keeps ctx values but not its cancellation, and applies
// Timeout instead.
func (c *CachedSearcher) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.Timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, c.Timeout)
}

func (c *CachedSearcher) lookup(ctx context.Context, key string) (Response, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT response FROM responses WHERE query_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Response{}, false, nil
	}
	if err != nil {
		return Response{}, false, fmt.Errorf("reading search cache: %w", err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return Response{}, false, fmt.Errorf("decoding cached response: %w", err)
	}
	return resp, true, nil
}

func (c *CachedSearcher) store(ctx context.Context, key, text string, resp Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response for cache: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (query_key, query_text, response, created_at) VALUES (?, ?, ?, ?)`,
		key, text, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing search cache: %w", err)
	}
	return nil
}

// cacheKey identifies a query by every parameter that changes the answer.
func cacheKey(q Query) (string, error) {
	q.Text = strings.TrimSpace(q.Text)
	b, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	return string(b), nil
}
