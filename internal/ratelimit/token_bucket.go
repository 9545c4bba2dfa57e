// Package ratelimit provides token-bucket admission control for the
// research core's external services ("search", "llm").
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Service names used across the research core.
const (
	ServiceSearch = "search"
	ServiceLLM    = "llm"
)

// Errors returned by Acquire. They are synchronous and final; callers
// propagate them rather than retrying inside the limiter.
var (
	ErrQueueFull   = errors.New("ratelimit: waiter queue full")
	ErrWaitTimeout = errors.New("ratelimit: timed out waiting for token")
	ErrClosed      = errors.New("ratelimit: limiter closed")
)

// BucketConfig describes one named token bucket.
type BucketConfig struct {
	Capacity      float64       `json:"capacity"`
	RefillPerSec  float64       `json:"refill_per_sec"`
	MaxQueueDepth int           `json:"max_queue_depth"`
	MaxWait       time.Duration `json:"max_wait"`
}

// DefaultBucketConfig is the shape used for services without an explicit
// entry in the limiter's config map.
func DefaultBucketConfig() BucketConfig {
	return BucketConfig{
		Capacity:      5,
		RefillPerSec:  1,
		MaxQueueDepth: 10,
		MaxWait:       30 * time.Second,
	}
}

// DefaultConfig returns bucket configs for the core's known services.
func DefaultConfig() map[string]BucketConfig {
	return map[string]BucketConfig{
		ServiceSearch: {Capacity: 5, RefillPerSec: 1, MaxQueueDepth: 10, MaxWait: 30 * time.Second},
		ServiceLLM:    {Capacity: 2, RefillPerSec: 0.5, MaxQueueDepth: 20, MaxWait: 30 * time.Second},
	}
}

// waiter is one queued Acquire call. err is assigned before ready is closed.
type waiter struct {
	ready chan struct{}
	err   error
}

// bucket holds token state and the FIFO waiter queue for one service.
type bucket struct {
	mu         sync.Mutex
	name       string
	capacity   float64
	rate       float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	queue      []*waiter
	maxDepth   int
	maxWait    time.Duration
	timer      *time.Timer // pending drain; nil when none scheduled
	closed     bool

	granted  uint64
	rejected uint64
	timedOut uint64
}

// Limiter is a registry of named token buckets. Buckets are created lazily;
// services without an explicit config get the fallback shape.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	configs  map[string]BucketConfig
	fallback BucketConfig
	closed   bool
}

// New creates a limiter from per-service bucket configs. A nil map gives
// every service the default shape.
func New(configs map[string]BucketConfig) *Limiter {
	if configs == nil {
		configs = DefaultConfig()
	}
	return &Limiter{
		buckets:  make(map[string]*bucket),
		configs:  configs,
		fallback: DefaultBucketConfig(),
	}
}

// Acquire blocks until one token is available for the named service, the
// context is cancelled, or the bucket's max wait elapses. It fails fast with
// ErrQueueFull when the waiter queue is at capacity, consuming no tokens.
// Waiters are served strictly FIFO.
func (l *Limiter) Acquire(ctx context.Context, service string) error {
	b, err := l.bucketFor(service)
	if err != nil {
		return err
	}
	return b.acquire(ctx)
}

// TryAcquire takes a token if one is immediately available and the queue is
// empty. It never blocks.
func (l *Limiter) TryAcquire(service string) bool {
	b, err := l.bucketFor(service)
	if err != nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.refillLocked(time.Now())
	if len(b.queue) == 0 && b.tokens >= 1 {
		b.tokens--
		b.granted++
		return true
	}
	return false
}

// bucketFor returns the bucket for a service, creating it on first use.
func (l *Limiter) bucketFor(service string) (*bucket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if b, ok := l.buckets[service]; ok {
		return b, nil
	}
	cfg, ok := l.configs[service]
	if !ok {
		cfg = l.fallback
	}
	b := &bucket{
		name:       service,
		capacity:   cfg.Capacity,
		rate:       cfg.RefillPerSec,
		tokens:     cfg.Capacity, // buckets start full
		lastRefill: time.Now(),
		maxDepth:   cfg.MaxQueueDepth,
		maxWait:    cfg.MaxWait,
	}
	l.buckets[service] = b
	return b, nil
}

// Close shuts down every bucket. Queued waiters fail with ErrClosed and
// pending drain timers are stopped.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	buckets := make([]*bucket, 0, len(l.buckets))
	for _, b := range l.buckets {
		buckets = append(buckets, b)
	}
	l.mu.Unlock()

	for _, b := range buckets {
		b.close()
	}
}

// BucketStats is a snapshot of one bucket.
type BucketStats struct {
	Service    string  `json:"service"`
	Tokens     float64 `json:"tokens"`
	Capacity   float64 `json:"capacity"`
	QueueDepth int     `json:"queue_depth"`
	Granted    uint64  `json:"granted"`
	Rejected   uint64  `json:"rejected"`
	TimedOut   uint64  `json:"timed_out"`
}

// GetStats returns a snapshot of every bucket created so far.
func (l *Limiter) GetStats() map[string]BucketStats {
	l.mu.Lock()
	buckets := make(map[string]*bucket, len(l.buckets))
	for name, b := range l.buckets {
		buckets[name] = b
	}
	l.mu.Unlock()

	stats := make(map[string]BucketStats, len(buckets))
	for name, b := range buckets {
		b.mu.Lock()
		b.refillLocked(time.Now())
		stats[name] = BucketStats{
			Service:    name,
			Tokens:     b.tokens,
			Capacity:   b.capacity,
			QueueDepth: len(b.queue),
			Granted:    b.granted,
			Rejected:   b.rejected,
			TimedOut:   b.timedOut,
		}
		b.mu.Unlock()
	}
	return stats
}

func (b *bucket) acquire(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.refillLocked(time.Now())

	// Fast path only when nobody is queued ahead of us.
	if len(b.queue) == 0 && b.tokens >= 1 {
		b.tokens--
		b.granted++
		b.mu.Unlock()
		return nil
	}

	// Over-capacity queues fail synchronously without consuming tokens.
	if len(b.queue) >= b.maxDepth {
		b.rejected++
		b.mu.Unlock()
		return fmt.Errorf("%w: service %q at depth %d", ErrQueueFull, b.name, b.maxDepth)
	}

	w := &waiter{ready: make(chan struct{})}
	b.queue = append(b.queue, w)
	b.scheduleDrainLocked()
	maxWait := b.maxWait
	b.mu.Unlock()

	timeout := time.NewTimer(maxWait)
	defer timeout.Stop()

	select {
	case <-w.ready:
		return w.err

	case <-ctx.Done():
		if b.removeWaiter(w) {
			return fmt.Errorf("ratelimit: %q acquire cancelled: %w", b.name, ctx.Err())
		}
		// The drain granted us a token between cancellation and removal.
		// The caller is abandoning the acquire, so return the token.
		<-w.ready
		if w.err == nil {
			b.refund()
		}
		return fmt.Errorf("ratelimit: %q acquire cancelled: %w", b.name, ctx.Err())

	case <-timeout.C:
		if b.removeWaiter(w) {
			b.mu.Lock()
			b.timedOut++
			b.mu.Unlock()
			return fmt.Errorf("%w: service %q after %s", ErrWaitTimeout, b.name, maxWait)
		}
		// Granted right at the deadline; the token is ours.
		<-w.ready
		return w.err
	}
}

// refillLocked applies lazy refill: min(capacity, tokens + elapsed*rate).
// The clock is monotonic (time.Time carries a monotonic reading).
func (b *bucket) refillLocked(now time.Time) {
	if !now.After(b.lastRefill) {
		return
	}
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
	b.lastRefill = now
}

// scheduleDrainLocked arms the drain timer when waiters are queued and no
// drain is pending. The delay is (1-tokens)/rate when under one token,
// immediate otherwise.
func (b *bucket) scheduleDrainLocked() {
	if b.timer != nil || b.closed || len(b.queue) == 0 {
		return
	}
	var delay time.Duration
	if b.tokens < 1 {
		if b.rate <= 0 {
			// No refill and no token: waiters can only resolve via refunds
			// or their own timeouts.
			return
		}
		delay = time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	}
	b.timer = time.AfterFunc(delay, b.drain)
}

// drain grants tokens to queued waiters in FIFO order, then reschedules
// itself while the queue is non-empty.
func (b *bucket) drain() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timer = nil
	if b.closed {
		return
	}
	b.refillLocked(time.Now())
	for len(b.queue) > 0 && b.tokens >= 1 {
		w := b.queue[0]
		b.queue = b.queue[1:]
		b.tokens--
		b.granted++
		close(w.ready)
	}
	if len(b.queue) > 0 {
		b.scheduleDrainLocked()
	}
}

// removeWaiter takes a waiter out of the queue. It reports false when the
// waiter is no longer queued, meaning a grant already happened.
func (b *bucket) removeWaiter(w *waiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.queue {
		if q == w {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return true
		}
	}
	return false
}

// refund returns a token consumed on behalf of a waiter that abandoned its
// acquire after the grant had already fired.
func (b *bucket) refund() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = math.Min(b.capacity, b.tokens+1)
	b.scheduleDrainLocked()
}

func (b *bucket) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	for _, w := range b.queue {
		w.err = ErrClosed
		close(w.ready)
	}
	b.queue = nil
}
