// Package selector tracks which persistence backend the current session
// uses. The choice can change freely before a session starts and is frozen
// until sign-out afterwards.
package selector

import (
	"sync"

	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
)

type Selector struct {
	mu     sync.Mutex
	state  models.Backend
	locked bool
}

// New returns a selector in the Local state.
func New() *Selector {
	return &Selector{state: models.BackendLocal}
}

func (s *Selector) Current() models.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Selector) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Choose records the user's pick. It fails with ErrSessionActive while a
// session is running.
func (s *Selector) Choose(b models.Backend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return common.ErrSessionActive
	}
	s.state = b
	return nil
}

// ForceRemote is applied when an identity session is discovered. It is a
// no-op when already Remote and fails while a Local session is running.
func (s *Selector) ForceRemote() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == models.BackendRemote {
		return nil
	}
	if s.locked {
		return common.ErrSessionActive
	}
	s.state = models.BackendRemote
	return nil
}

// Lock freezes the current state for the lifetime of a session and returns it.
func (s *Selector) Lock() models.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = true
	return s.state
}

// Reset unlocks and returns to Local. Callers must have cleared the
// session's identity and gallery first.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
	s.state = models.BackendLocal
}
