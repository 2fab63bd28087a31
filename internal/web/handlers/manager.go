package handlers

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/registration"
)

var errTooManySurfaces = errors.New("too many open surfaces")

// SurfaceManager owns the open entry surfaces. Surfaces idle for longer than the
// idle timeout are closed, which releases any camera they hold.
type SurfaceManager struct {
	opts       registration.Options
	allSources bool
	idle       time.Duration

	surfaces map[string]*registration.Surface
	mu       sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSurfaceManager creates a manager and starts its idle janitor.
func NewSurfaceManager(opts registration.Options, idle time.Duration, allSources bool) *SurfaceManager {
	m := &SurfaceManager{
		opts:       opts,
		allSources: allSources,
		idle:       idle,
		surfaces:   make(map[string]*registration.Surface),
		stop:       make(chan struct{}),
	}
	if idle > 0 {
		go m.janitor()
	}
	return m
}

// Create opens a new surface of kind.
func (m *SurfaceManager) Create(kind registration.Kind) (*registration.Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.surfaces) >= constants.MaxSurfaces {
		return nil, errTooManySurfaces
	}

	s := registration.NewSurface(uuid.New().String(), kind, m.opts)
	if m.allSources {
		s.EnableAllSources(m.opts)
	}
	m.surfaces[s.ID] = s

	log.WithFields(log.Fields{"surface": s.ID, "kind": kind}).Info("surface opened")
	return s, nil
}

// Get returns the surface with id, or nil.
func (m *SurfaceManager) Get(id string) *registration.Surface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.surfaces[id]
}

// Delete closes and forgets the surface with id.
func (m *SurfaceManager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.surfaces[id]
	delete(m.surfaces, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of open surfaces.
func (m *SurfaceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.surfaces)
}

// sweep closes surfaces whose last activity is older than the idle timeout.
func (m *SurfaceManager) sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*registration.Surface
	for id, s := range m.surfaces {
		if now.Sub(s.LastActive()) > m.idle {
			expired = append(expired, s)
			delete(m.surfaces, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		log.WithField("surface", s.ID).Info("closed idle surface")
	}
	return len(expired)
}

func (m *SurfaceManager) janitor() {
	ticker := time.NewTicker(constants.SurfaceJanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// Stop ends the janitor and closes every open surface.
func (m *SurfaceManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	m.mu.Lock()
	surfaces := m.surfaces
	m.surfaces = make(map[string]*registration.Surface)
	m.mu.Unlock()

	for _, s := range surfaces {
		s.Close()
	}
	if len(surfaces) > 0 {
		log.WithField("count", len(surfaces)).Info("closed open surfaces")
	}
}
