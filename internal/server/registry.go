package server

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/KaramelBytes/cleanloom/internal/dataset"
	"github.com/KaramelBytes/cleanloom/internal/pipeline"
)

// ErrUnknownSession is returned for ids the registry does not hold.
var ErrUnknownSession = errors.New("unknown session")

// Registry owns every live session. Sessions never share state; the
// registry lock only guards the map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*pipeline.Session
	opts     pipeline.Options
	logger   *zap.Logger
}

// NewRegistry returns an empty registry creating sessions with opts.
func NewRegistry(opts pipeline.Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*pipeline.Session),
		opts:     opts,
		logger:   logger,
	}
}

// Create starts a session over ds and returns it with its first outcome.
func (r *Registry) Create(ds *dataset.Dataset, filename string) (*pipeline.Session, *pipeline.Outcome, error) {
	s := pipeline.New(r.opts, nil, r.logger)
	out, err := s.Load(ds, filename)
	if err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, out, nil
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*pipeline.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Delete forgets a session. It reports whether the id was known.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
