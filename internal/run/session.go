package run

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/partsflow/descgen-backend/internal/platform/logger"
	"github.com/partsflow/descgen-backend/internal/sse"
)

// Session is one generation run: an explicit handle owned by the caller
// rather than process-global state. The worker goroutine is its single
// writer; observers read through the manager and the SSE hub.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	hub     *sse.Hub
	stopped atomic.Bool
	done    atomic.Bool
}

// Publish pushes one log line to every connected observer.
func (s *Session) Publish(level, format string, args ...interface{}) {
	s.hub.Broadcast(sse.NewLogEntry(level, fmt.Sprintf(format, args...)))
}

// RequestStop asks the worker to stop before the next row. It does not
// interrupt an in-flight model call.
func (s *Session) RequestStop() { s.stopped.Store(true) }

// Stopped is polled by the row processor between rows.
func (s *Session) Stopped() bool { return s.stopped.Load() }

// Manager enforces the one-active-run rule for a deployment.
type Manager struct {
	mu      sync.Mutex
	log     *logger.Logger
	hub     *sse.Hub
	current *Session
}

func NewManager(log *logger.Logger, hub *sse.Hub) *Manager {
	return &Manager{
		log: log.With("component", "RunManager"),
		hub: hub,
	}
}

// ErrRunActive is returned when a start request overlaps a running session.
var ErrRunActive = fmt.Errorf("a generation run is already active")

// Begin claims the single run slot. The caller must pair it with Finish.
func (m *Manager) Begin() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && !m.current.done.Load() {
		return nil, ErrRunActive
	}
	m.hub.ResetBacklog()
	s := &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		hub:       m.hub,
	}
	m.current = s
	m.log.Info("Run started", "run_id", s.ID)
	return s, nil
}

// Finish releases the run slot.
func (m *Manager) Finish(s *Session) {
	s.done.Store(true)
	m.log.Info("Run finished", "run_id", s.ID)
}

// Active reports whether a run is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.done.Load()
}

// StopCurrent flags the active run, if any, to stop after its current row.
func (m *Manager) StopCurrent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.done.Load() {
		return false
	}
	m.current.RequestStop()
	m.log.Info("Stop requested", "run_id", m.current.ID)
	return true
}
