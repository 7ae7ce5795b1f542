package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pable/go-showdown-tracker/internal/identity"
	"github.com/pable/go-showdown-tracker/internal/model"
	"github.com/pable/go-showdown-tracker/internal/parser"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

// DefaultConcurrency is the number of fetches allowed in flight at once.
const DefaultConcurrency = 3

// Config controls one orchestrator.
type Config struct {
	Concurrency int           // workers; <= 0 uses DefaultConcurrency
	Pacing      time.Duration // minimum spacing between request starts; 0 disables
	Timeout     time.Duration // per-fetch bound; <= 0 uses DefaultTimeout
	KnownNames  []string      // account names that identify the user
	TeamID      string        // history list the refs are appended to; optional
}

// Event reports a state change for one reference.
type Event struct {
	Ref   string
	State model.ReplayState
	Entry *model.ReplayEntry
	Err   error
}

// Observer receives events. Calls are never concurrent.
type Observer func(Event)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for fetch and parse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the clock used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator fetches, parses and classifies replays and persists each
// reference's lifecycle to a KV store.
type Orchestrator struct {
	fetcher  Fetcher
	store    storage.KV
	cfg      Config
	names    identity.NameSet
	observer Observer
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an orchestrator. observer may be nil.
func New(fetcher Fetcher, store storage.KV, cfg Config, observer Observer, opts ...Option) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	limit := rate.Inf
	if cfg.Pacing > 0 {
		limit = rate.Every(cfg.Pacing)
	}
	o := &Orchestrator{
		fetcher:  fetcher,
		store:    store,
		cfg:      cfg,
		names:    identity.NewNameSet(cfg.KnownNames...),
		observer: observer,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Batch is one Start call in progress.
type Batch struct {
	o *Orchestrator

	mu        sync.Mutex
	queue     []string
	inflight  map[string]bool
	withdrawn map[string]bool

	events  chan Event
	last    map[string]Event
	workers sync.WaitGroup
	done    chan struct{}
}

// Start persists a registered placeholder for every distinct reference,
// then fetches them in order on the worker pool. It returns once the
// placeholders are stored; use Batch.Wait to block until processing ends.
func (o *Orchestrator) Start(ctx context.Context, refs []string) (*Batch, error) {
	refs = dedupe(refs)

	// Placeholders go in before any network activity.
	for _, ref := range refs {
		if _, err := o.transition(ref, model.StateRegistered, ""); err != nil {
			return nil, err
		}
		if o.cfg.TeamID != "" {
			if err := storage.AppendTeamReplay(o.store, o.cfg.TeamID, ref); err != nil {
				return nil, fmt.Errorf("register %s: %w", ref, err)
			}
		}
	}

	b := &Batch{
		o:         o,
		queue:     append([]string(nil), refs...),
		inflight:  make(map[string]bool),
		withdrawn: make(map[string]bool),
		events:    make(chan Event, 64),
		last:      make(map[string]Event),
		done:      make(chan struct{}),
	}
	go b.dispatch()

	for _, ref := range refs {
		entry, _, _ := storage.LoadReplay(o.store, ref)
		b.events <- Event{Ref: ref, State: model.StateRegistered, Entry: entry}
	}

	n := min(o.cfg.Concurrency, len(refs))
	b.workers.Add(n)
	for i := 0; i < n; i++ {
		go b.work(ctx)
	}
	go func() {
		b.workers.Wait()
		close(b.events)
	}()

	o.logger.Debug("batch started", "refs", len(refs), "workers", n)
	return b, nil
}

// Retry re-runs the whole pipeline for one reference. A successful run
// overwrites the stored record.
func (o *Orchestrator) Retry(ctx context.Context, ref string) (*Batch, error) {
	return o.Start(ctx, []string{ref})
}

// Withdraw removes ref from the batch. A pending ref is dropped from the
// queue; an in-flight ref finishes but its result is not stored. It reports
// whether ref was pending or in flight.
func (b *Batch) Withdraw(ref string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.queue {
		if r == ref {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return true
		}
	}
	if b.inflight[ref] {
		b.withdrawn[ref] = true
		return true
	}
	return false
}

// Wait blocks until every reference is processed and all events have been
// delivered. It returns the last event seen for each reference.
func (b *Batch) Wait() map[string]Event {
	<-b.done
	out := make(map[string]Event, len(b.last))
	for k, v := range b.last {
		out[k] = v
	}
	return out
}

func (b *Batch) dispatch() {
	defer close(b.done)
	for ev := range b.events {
		b.last[ev.Ref] = ev
		if b.o.observer != nil {
			b.o.observer(ev)
		}
	}
}

func (b *Batch) work(ctx context.Context) {
	defer b.workers.Done()
	for {
		ref, ok := b.next()
		if !ok {
			return
		}
		b.process(ctx, ref)
		b.mu.Lock()
		delete(b.inflight, ref)
		b.mu.Unlock()
	}
}

func (b *Batch) next() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return "", false
	}
	ref := b.queue[0]
	b.queue = b.queue[1:]
	b.inflight[ref] = true
	return ref, true
}

func (b *Batch) process(ctx context.Context, ref string) {
	o := b.o
	log := o.logger.With("ref", ref)

	if err := o.limiter.Wait(ctx); err != nil {
		b.fail(ref, err)
		return
	}
	if b.isWithdrawn(ref) {
		return
	}

	entry, err := o.transition(ref, model.StateFetching, "")
	if err != nil {
		log.Warn("mark fetching", "err", err)
	}
	b.events <- Event{Ref: ref, State: model.StateFetching, Entry: entry}

	start := time.Now()
	rec, err := o.run(ctx, ref)
	if err != nil {
		log.Warn("replay failed", "err", err, "elapsed", time.Since(start))
		b.fail(ref, err)
		return
	}
	log.Info("replay parsed", "result", rec.Result, "opponent", rec.OpponentLabel, "elapsed", time.Since(start))

	b.mu.Lock()
	if b.withdrawn[ref] {
		b.mu.Unlock()
		log.Debug("withdrawn, result discarded")
		return
	}
	parsed := model.ReplayEntry{
		Ref:       ref,
		TeamID:    o.cfg.TeamID,
		State:     model.StateParsed,
		Record:    rec,
		UpdatedAt: o.now().UTC(),
	}
	err = storage.SaveReplay(o.store, parsed)
	b.mu.Unlock()
	if err != nil {
		b.fail(ref, fmt.Errorf("store record: %w", err))
		return
	}
	b.events <- Event{Ref: ref, State: model.StateParsed, Entry: &parsed}
}

// run is the fetch, parse and classify pipeline for one reference.
func (o *Orchestrator) run(ctx context.Context, ref string) (rec *model.BattleRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse %s: panic: %v", ref, r)
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	replay, err := o.fetcher.Fetch(fctx, ref)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	id := replay.ID
	if id == "" {
		id = ref
	}
	parsed, err := parser.ParseLog(id, replay.Log, o.logger)
	if err != nil {
		return nil, err
	}
	if parsed.Format == "" {
		parsed.Format = replay.Format
	}
	if parsed.PlayedAt.IsZero() && !replay.UploadedAt.IsZero() {
		parsed.PlayedAt = replay.UploadedAt
	}
	resolved := identity.Resolve(*parsed, o.names)
	return &resolved, nil
}

func (b *Batch) fail(ref string, cause error) {
	b.mu.Lock()
	if b.withdrawn[ref] {
		b.mu.Unlock()
		return
	}
	entry, err := b.o.transition(ref, model.StateFailed, cause.Error())
	b.mu.Unlock()
	if err != nil {
		b.o.logger.Warn("mark failed", "ref", ref, "err", err)
	}
	b.events <- Event{Ref: ref, State: model.StateFailed, Entry: entry, Err: cause}
}

func (b *Batch) isWithdrawn(ref string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.withdrawn[ref]
}

// transition stores a new state for ref, keeping any record from an
// earlier successful run.
func (o *Orchestrator) transition(ref string, state model.ReplayState, errText string) (*model.ReplayEntry, error) {
	entry, ok, err := storage.LoadReplay(o.store, ref)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	if !ok {
		entry = &model.ReplayEntry{Ref: ref}
	}
	if o.cfg.TeamID != "" {
		entry.TeamID = o.cfg.TeamID
	}
	entry.State = state
	entry.Error = errText
	entry.UpdatedAt = o.now().UTC()
	if err := storage.SaveReplay(o.store, *entry); err != nil {
		return nil, fmt.Errorf("store %s: %w", ref, err)
	}
	return entry, nil
}

func dedupe(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
