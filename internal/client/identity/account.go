package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/secretvault/internal/common"
)

// Account is a stored credential. The password itself is never kept: only
// its salt and verifier.
type Account struct {
	ID          string
	Email       string
	DisplayName string
	Salt        []byte
	Verifier    []byte
	CreatedAt   time.Time
}

// Accounts persists accounts. Create reports common.ErrAlreadyInUse for a
// taken email; lookups report common.ErrNotFound.
type Accounts interface {
	Create(ctx context.Context, a *Account) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Delete(ctx context.Context, id string) error
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// MemoryAccounts is an in-process Accounts.
type MemoryAccounts struct {
	mu      sync.RWMutex
	byEmail map[string]*Account
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{byEmail: make(map[string]*Account)}
}

func (m *MemoryAccounts) Create(_ context.Context, a *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[a.Email]; ok {
		return nil, fmt.Errorf("account %s: %w", a.Email, common.ErrAlreadyInUse)
	}
	c := *a
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	m.byEmail[c.Email] = &c
	out := c
	return &out, nil
}

func (m *MemoryAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (m *MemoryAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, a := range m.byEmail {
		if a.ID == id {
			delete(m.byEmail, email)
			return nil
		}
	}
	return common.ErrNotFound
}
