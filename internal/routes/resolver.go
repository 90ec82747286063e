package routes

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/KakaCheng2010/go-admin/internal/menu"
	"github.com/KakaCheng2010/go-admin/internal/observability"
	"github.com/KakaCheng2010/go-admin/internal/platform/httpx"
)

// Phase is the per-session route resolution state.
type Phase int

const (
	// PhaseUnbootstrapped: no menus loaded, no routes generated.
	PhaseUnbootstrapped Phase = iota
	// PhaseMenusPending: authenticated, menu list not yet available. Entering
	// this phase triggers exactly one load attempt.
	PhaseMenusPending
	// PhaseReady: a definitive menu list is in and routes are generated.
	PhaseReady
)

// ErrSessionEnded reports that the session was logged out while its menu load
// was in flight. The late result is discarded.
var ErrSessionEnded = errors.New("routes: session ended during menu load")

// Credentials is the slice of session state the resolver needs for backend
// calls: the current bearer token and the ability to adopt a refreshed one.
type Credentials interface {
	Token() string
	SetToken(token string)
}

// FetchFunc loads the user's menu set from the backend.
type FetchFunc func(ctx context.Context, creds Credentials) ([]menu.Record, error)

// Resolver drives the per-session menu-to-route pipeline. Menus come from the
// cache when fresh, from the backend otherwise, and only a full definitive
// list ever materializes a route table. Logout tears a session's table down
// synchronously and makes any in-flight load inert.
type Resolver struct {
	registry *Registry
	cache    *menu.Cache
	fetch    FetchFunc
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*sessionState
	group    singleflight.Group
}

type sessionState struct {
	phase   Phase
	routes  *RouteSet
	records []menu.Record
}

// NewResolver builds a Resolver. metrics may be nil.
func NewResolver(registry *Registry, cache *menu.Cache, fetch FetchFunc, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry: registry,
		cache:    cache,
		fetch:    fetch,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*sessionState),
	}
}

// Routes returns the route set for the session, loading menus first when
// necessary. principal keys the menu cache (one cache entry per account),
// sessionID keys the in-memory resolution state.
//
// A fetch failure other than 401 resolves to a definitive empty list: the
// authenticated shell stays up with no dynamic entries. A 401 propagates as
// httpx.ErrUnauthorized so the caller can run the global invalidation path.
func (r *Resolver) Routes(ctx context.Context, sessionID, principal string, creds Credentials) (*RouteSet, error) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		r.sessions[sessionID] = st
	}
	if st.phase == PhaseReady {
		rs := st.routes
		r.mu.Unlock()
		return rs, nil
	}
	st.phase = PhaseMenusPending
	r.mu.Unlock()

	// Concurrent requests for the same session share one load.
	v, err, _ := r.group.Do(sessionID, func() (any, error) {
		res, err := r.load(ctx, principal, creds)
		return res, err
	})
	if err != nil {
		if errors.Is(err, httpx.ErrUnauthorized) {
			return nil, err
		}
		// Menu fetch failure is non-fatal: the list resolves to empty and
		// the shell renders with no dynamic entries.
		r.logger.Error("menu load failed", slog.Any("error", err))
		v = loadResult{}
	}
	res := v.(loadResult)
	records := res.records

	// Validate before generation; a malformed set (parent cycle) degrades to
	// an empty list rather than a crash or a partial table.
	if _, err := menu.BuildTree(records); err != nil {
		r.logger.Error("menu payload rejected", slog.Any("error", err))
		records = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[sessionID]
	if !ok || current != st {
		// Logged out while the load was in flight; the result is stale and
		// must not resurrect cleared state.
		return nil, ErrSessionEnded
	}
	if st.phase == PhaseReady {
		return st.routes, nil
	}
	if res.fetched {
		// The cache write waits for the liveness check above: a fetch that
		// resolves after logout must not repopulate the entry logout cleared.
		r.cache.Write(ctx, principal, records)
	}
	st.records = records
	st.routes = Generate(r.registry, records)
	st.phase = PhaseReady
	r.observeGeneration()
	return st.routes, nil
}

// Seed installs a menu list delivered alongside login, bypassing the fetch.
// The previous cache entry for the principal is superseded.
func (r *Resolver) Seed(ctx context.Context, sessionID, principal string, records []menu.Record) {
	if _, err := menu.BuildTree(records); err != nil {
		r.logger.Error("seeded menu payload rejected", slog.Any("error", err))
		records = nil
	}
	r.cache.Write(ctx, principal, records)

	r.mu.Lock()
	defer r.mu.Unlock()
	st := &sessionState{
		phase:   PhaseReady,
		records: records,
		routes:  Generate(r.registry, records),
	}
	r.sessions[sessionID] = st
	r.observeGeneration()
}

// Logout clears the session's menu state and cache entry synchronously. Any
// in-flight load for the session resolves inert afterwards.
func (r *Resolver) Logout(ctx context.Context, sessionID, principal string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	r.cache.Clear(ctx, principal)
}

// Reset drops the in-memory state for a session without touching the cache,
// for a fresh bootstrap on the next request.
func (r *Resolver) Reset(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// PhaseOf reports the session's current resolution phase. Sessions the
// resolver has never seen, or that were logged out, are unbootstrapped.
func (r *Resolver) PhaseOf(sessionID string) Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.sessions[sessionID]; ok {
		return st.phase
	}
	return PhaseUnbootstrapped
}

// loadResult carries the menu records plus whether they came from a backend
// fetch. Only fetched records are written back to the cache, and only once the
// session is known to still be live.
type loadResult struct {
	records []menu.Record
	fetched bool
}

func (r *Resolver) load(ctx context.Context, principal string, creds Credentials) (loadResult, error) {
	if records, ok := r.cache.Read(ctx, principal); ok {
		r.observeCache("hit")
		return loadResult{records: records}, nil
	}
	r.observeCache("miss")
	records, err := r.fetch(ctx, creds)
	if err != nil {
		return loadResult{}, err
	}
	return loadResult{records: records, fetched: true}, nil
}

func (r *Resolver) observeCache(outcome string) {
	if r.metrics != nil {
		r.metrics.MenuCacheLookup(outcome)
	}
}

func (r *Resolver) observeGeneration() {
	if r.metrics != nil {
		r.metrics.RouteGeneration()
	}
}
