// Package registry tracks the chat sessions attached right now and fans
// messages out to them.
//
// Broadcast snapshots the matching sessions under a read lock and delivers
// outside it, so Attach and Detach never wait on a slow transport. A session
// detached after the snapshot is skipped without error.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pilobster/pilobster/internal/channels"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/retry"
)

const (
	DefaultSendTimeout  = 30 * time.Second
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultMaxRetryWait = 5 * time.Second

	// deliveryAttempts is the first send plus one retry.
	deliveryAttempts = 2
)

// Message is what a transport renders.
type Message struct {
	Text string
	// Tag marks the origin, e.g. "scheduled".
	Tag   string
	JobID int64
}

// Deliverer pushes a message through one transport session.
// Implementations return channels.ErrSessionClosed once the transport is gone.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, msg Message) error

func (f DelivererFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Session is an attached transport instance.
type Session struct {
	ID         uuid.UUID
	Kind       Kind
	Lineage    string
	AttachedAt time.Time
}

// Report summarises one broadcast.
type Report struct {
	Attempted int
	Delivered int
	Skipped   int
	Failed    []*DeliveryError
}

type Config struct {
	SendTimeout  time.Duration
	RetryBackoff time.Duration
	MaxRetryWait time.Duration
}

type entry struct {
	session   Session
	deliverer Deliverer
	detached  atomic.Bool
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry

	cfg     Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an empty registry. m may be nil.
func New(cfg Config, log *logger.Logger, m *metrics.Metrics) *Registry {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = DefaultMaxRetryWait
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*entry),
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		now:      time.Now,
	}
}

// Attach registers a live session and returns its handle.
func (r *Registry) Attach(kind Kind, lineage string, d Deliverer) Session {
	sess := Session{
		ID:         uuid.New(),
		Kind:       kind,
		Lineage:    lineage,
		AttachedAt: r.now(),
	}

	r.mu.Lock()
	r.sessions[sess.ID] = &entry{session: sess, deliverer: d}
	n := r.countKindLocked(kind)
	r.mu.Unlock()

	r.metrics.SetSessions(string(kind), n)
	r.logger.Info("session attached",
		logger.Field{Key: "session_id", Value: sess.ID.String()},
		logger.Field{Key: "kind", Value: string(kind)},
		logger.Field{Key: "lineage", Value: lineage})
	return sess
}

// Detach removes a session. It reports false for unknown or already
// detached handles.
func (r *Registry) Detach(id uuid.UUID) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		e.detached.Store(true)
	}
	var n int
	if ok {
		n = r.countKindLocked(e.session.Kind)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.metrics.SetSessions(string(e.session.Kind), n)
	r.logger.Info("session detached",
		logger.Field{Key: "session_id", Value: id.String()},
		logger.Field{Key: "kind", Value: string(e.session.Kind)},
		logger.Field{Key: "lineage", Value: e.session.Lineage})
	return true
}

// Sessions returns the attached sessions inside scope, oldest first.
func (r *Registry) Sessions(scope Scope) []Session {
	entries := r.snapshot(scope)
	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.session)
	}
	return out
}

// Lineages returns the distinct lineages of the attached sessions in scope.
func (r *Registry) Lineages(scope Scope) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range r.Sessions(scope) {
		if _, ok := seen[s.Lineage]; ok {
			continue
		}
		seen[s.Lineage] = struct{}{}
		out = append(out, s.Lineage)
	}
	return out
}

// Count returns the number of attached sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) CountByKind(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countKindLocked(kind)
}

func (r *Registry) countKindLocked(kind Kind) int {
	n := 0
	for _, e := range r.sessions {
		if e.session.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Registry) snapshot(scope Scope) []*entry {
	r.mu.RLock()
	out := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if scope.Matches(e.session) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sortEntries(out)
	return out
}

// Broadcast delivers msg to every session in scope. Each recipient is tried
// at most twice; failures are isolated to that recipient.
func (r *Registry) Broadcast(ctx context.Context, msg Message, scope Scope) Report {
	targets := r.snapshot(scope)
	report := Report{Attempted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	type outcome struct {
		skipped bool
		err     *DeliveryError
	}
	results := make([]outcome, len(targets))

	var wg sync.WaitGroup
	for i, e := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			skipped, err := r.deliver(ctx, e, msg)
			results[i] = outcome{skipped: skipped, err: err}
		}()
	}
	wg.Wait()

	for _, res := range results {
		switch {
		case res.err != nil:
			report.Failed = append(report.Failed, res.err)
		case res.skipped:
			report.Skipped++
		default:
			report.Delivered++
		}
	}
	return report
}

func (r *Registry) deliver(ctx context.Context, e *entry, msg Message) (skipped bool, derr *DeliveryError) {
	kind := string(e.session.Kind)
	attempts := 0

	defer func() {
		if p := recover(); p != nil {
			derr = &DeliveryError{
				SessionID: e.session.ID,
				Kind:      e.session.Kind,
				Lineage:   e.session.Lineage,
				Attempts:  attempts,
				Err:       fmt.Errorf("deliverer panic: %v", p),
			}
			skipped = false
			r.metrics.RecordDelivery(kind, "failed")
			r.logger.Warn("delivery panicked", derr.logFields()...)
		}
	}()

	if e.detached.Load() {
		r.metrics.RecordDelivery(kind, "stale")
		return true, nil
	}

	err := retry.Do(ctx, retry.Config{
		MaxAttempts:    deliveryAttempts,
		InitialBackoff: r.cfg.RetryBackoff,
		MaxBackoff:     r.cfg.MaxRetryWait,
		Retryable: func(err error) bool {
			return !e.detached.Load() && !errors.Is(err, channels.ErrSessionClosed) && retry.IsRetryable(err)
		},
		OnRetry: func(attempt int, err error, wait time.Duration) {
			r.metrics.RecordDelivery(kind, "retried")
			r.logger.Debug("retrying delivery",
				logger.Field{Key: "lineage", Value: e.session.Lineage},
				logger.Field{Key: "attempt", Value: attempt},
				logger.Field{Key: "wait", Value: wait.String()},
				logger.Field{Key: "error", Value: err.Error()})
		},
	}, func(ctx context.Context) error {
		if e.detached.Load() {
			return channels.ErrSessionClosed
		}
		attempts++
		sendCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
		defer cancel()
		return e.deliverer.Deliver(sendCtx, msg)
	})

	if err == nil {
		r.metrics.RecordDelivery(kind, "delivered")
		return false, nil
	}
	if errors.Is(err, channels.ErrSessionClosed) || e.detached.Load() {
		r.metrics.RecordDelivery(kind, "stale")
		r.logger.Debug("skipped stale session",
			logger.Field{Key: "session_id", Value: e.session.ID.String()},
			logger.Field{Key: "lineage", Value: e.session.Lineage})
		return true, nil
	}

	derr = &DeliveryError{
		SessionID: e.session.ID,
		Kind:      e.session.Kind,
		Lineage:   e.session.Lineage,
		Attempts:  attempts,
		Err:       err,
	}
	r.metrics.RecordDelivery(kind, "failed")
	r.logger.Warn("delivery failed", derr.logFields()...)
	return false, derr
}

func (e *DeliveryError) logFields() []logger.Field {
	return []logger.Field{
		{Key: "session_id", Value: e.SessionID.String()},
		{Key: "kind", Value: string(e.Kind)},
		{Key: "lineage", Value: e.Lineage},
		{Key: "attempts", Value: e.Attempts},
		{Key: "error", Value: e.Err.Error()},
	}
}

func sortEntries(entries []*entry) {
	slices.SortFunc(entries, func(a, b *entry) int {
		if c := a.session.AttachedAt.Compare(b.session.AttachedAt); c != 0 {
			return c
		}
		return strings.Compare(a.session.ID.String(), b.session.ID.String())
	})
}
