// Package quota caps how many mutating requests a tenant may issue per
// calendar day. The clock and the counter store are injected, so the day
// boundary is explicit and a Redis-backed store survives restarts.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

var ErrExceeded = errors.New("quota: daily limit reached")

// CounterStore increments day-scoped counters.
type CounterStore interface {
	// Incr adds one to key and returns the new value. The key may be
	// discarded once ttl has elapsed.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type DailyCounter struct {
	store  CounterStore
	limit  int64
	loc    *time.Location
	now    func() time.Time
	prefix string
}

type Option func(c *DailyCounter)

func WithClock(now func() time.Time) Option {
	return func(c *DailyCounter) { c.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(c *DailyCounter) { c.loc = loc }
}

func WithPrefix(prefix string) Option {
	return func(c *DailyCounter) { c.prefix = prefix }
}

// NewDailyCounter returns a counter allowing limit calls per scope and day.
// A limit of zero or less disables it.
func NewDailyCounter(store CounterStore, limit int, opts ...Option) *DailyCounter {
	c := &DailyCounter{
		store:  store,
		limit:  int64(limit),
		loc:    time.UTC,
		now:    time.Now,
		prefix: "dayplan:quota:",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DailyCounter) Enabled() bool {
	return c != nil && c.limit > 0
}

// Usage describes the state of one scope after a call to Allow.
type Usage struct {
	Used    int64
	Limit   int64
	ResetAt time.Time
}

func (u Usage) Remaining() int64 {
	if u.Used >= u.Limit {
		return 0
	}
	return u.Limit - u.Used
}

// Allow counts one call for scope and fails with ErrExceeded once the day's
// limit is passed. Rejected calls are counted too.
func (c *DailyCounter) Allow(ctx context.Context, scope string) (Usage, error) {
	if !c.Enabled() {
		return Usage{}, nil
	}

	now := c.now().In(c.loc)
	day := civil.DateOf(now)
	resetAt := day.AddDays(1).In(c.loc)

	// keep the key a little past midnight so late writers still hit it
	ttl := resetAt.Sub(now) + time.Hour

	used, err := c.store.Incr(ctx, c.key(scope, day), ttl)
	if err != nil {
		return Usage{}, fmt.Errorf("quota: %w", err)
	}

	usage := Usage{Used: used, Limit: c.limit, ResetAt: resetAt}
	if used > c.limit {
		return usage, ErrExceeded
	}
	return usage, nil
}

func (c *DailyCounter) key(scope string, day civil.Date) string {
	return c.prefix + scope + ":" + day.String()
}
