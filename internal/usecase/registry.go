package usecase

import (
	"context"
	"sync"

	"github.com/carousell/ct-go/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Registry hands out at most one Session per team. Creation is memoized:
// concurrent callers for the same team share one in-flight dial instead
// of racing to create duplicate connections.
type Registry struct {
	log  *logger.Logger
	deps SessionDeps

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	done chan struct{}
	sess *Session
	err  error
}

func NewRegistry(deps SessionDeps) *Registry {
	return &Registry{
		log:     logger.MustNamed("registry"),
		deps:    deps,
		entries: make(map[string]*registryEntry),
	}
}

// GetOrCreate returns the team's session, creating it on first use. A
// failed creation is forgotten so the next caller retries.
func (r *Registry) GetOrCreate(ctx context.Context, teamID string) (*Session, error) {
	r.mu.Lock()
	if e, ok := r.entries[teamID]; ok {
		r.mu.Unlock()
		select {
		case <-e.done:
			return e.sess, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &registryEntry{done: make(chan struct{})}
	r.entries[teamID] = e
	r.mu.Unlock()

	sess, err := NewSession(ctx, teamID, r.deps)
	e.sess, e.err = sess, err
	if err != nil {
		r.mu.Lock()
		delete(r.entries, teamID)
		r.mu.Unlock()
	}
	close(e.done)
	return sess, err
}

// Get returns the session only if it already exists.
func (r *Registry) Get(teamID string) (*Session, bool) {
	r.mu.Lock()
	e, ok := r.entries[teamID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.done:
	default:
		return nil, false
	}
	if e.err != nil {
		return nil, false
	}
	return e.sess, true
}

// Remove closes the team's session and forgets it.
func (r *Registry) Remove(teamID string) {
	r.mu.Lock()
	e, ok := r.entries[teamID]
	delete(r.entries, teamID)
	r.mu.Unlock()
	if !ok {
		return
	}
	<-e.done
	if e.sess != nil {
		e.sess.Close()
	}
}

// RemoveAll closes every session, used at shutdown.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	teams := make([]string, 0, len(r.entries))
	for teamID := range r.entries {
		teams = append(teams, teamID)
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, teamID := range teams {
		teamID := teamID
		g.Go(func() error {
			r.Remove(teamID)
			return nil
		})
	}
	g.Wait()
}

// WarmUp revives the session of every account flagged for reconnect. A
// tenant that fails to connect is logged and skipped; boot goes on.
func (r *Registry) WarmUp(ctx context.Context) error {
	accounts, err := r.deps.Store.ListAutoReconnect(ctx)
	if err != nil {
		return err
	}

	g := errgroup.Group{}
	g.SetLimit(8)
	for _, account := range accounts {
		teamID := account.ID
		g.Go(func() error {
			if _, err := r.GetOrCreate(ctx, teamID); err != nil {
				r.log.Errorw("failed to revive session", "team_id", teamID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
