// Package identity authenticates users against an account store and keeps
// the resulting session as a signed token in the key/value store, so a
// restarted client can resume it.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/secretvault/internal/client/kv"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/logging"
)

// SnapshotKey holds the persisted session.
const SnapshotKey = "sv_identity"

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

type snapshot struct {
	models.Identity
	Token string `json:"token"`
}

// Provider is the identity bridge. Observers registered with
// ObserveSession are told about every sign-in, sign-out and restore.
type Provider struct {
	accounts Accounts
	store    kv.Store
	secret   []byte
	ttl      time.Duration
	log      logging.Logger
	now      func() time.Time

	mu        sync.Mutex
	current   *models.Identity
	observers map[int]func(*models.Identity)
	nextObs   int
}

func NewProvider(accounts Accounts, store kv.Store, secret []byte, ttl time.Duration, log logging.Logger) *Provider {
	return &Provider{
		accounts:  accounts,
		store:     store,
		secret:    secret,
		ttl:       ttl,
		log:       log.With("component", "identity"),
		now:       time.Now,
		observers: make(map[int]func(*models.Identity)),
	}
}

func (p *Provider) SignIn(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return models.Identity{}, err
	}

	acct, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return models.Identity{}, common.NewAuthError(common.ErrInvalidCredentials, common.ErrNotFound)
	}
	if err != nil {
		return models.Identity{}, common.NewAuthError(common.ErrAuthUnknown, err)
	}
	if !checkPassword(creds.Password, acct) {
		return models.Identity{}, common.NewAuthError(common.ErrInvalidCredentials, nil)
	}

	id := models.Identity{UID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}
	p.establish(ctx, id)
	p.log.Info(ctx, "signed in", "uid", id.UID)
	return id, nil
}

func (p *Provider) SignUp(ctx context.Context, creds models.Credentials) (models.Identity, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return models.Identity{}, err
	}
	if len(creds.Password) < MinPasswordLen {
		return models.Identity{}, common.NewAuthError(common.ErrWeakSecret,
			fmt.Errorf("at least %d characters required", MinPasswordLen))
	}

	salt := common.GenerateRandByteArray(16)
	if salt == nil {
		return models.Identity{}, common.NewAuthError(common.ErrAuthUnknown, errors.New("salt generation failed"))
	}
	name := strings.TrimSpace(creds.DisplayName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	acct, err := p.accounts.Create(ctx, &Account{
		Email:       email,
		DisplayName: name,
		Salt:        salt,
		Verifier:    makeVerifier(deriveKey(creds.Password, salt)),
	})
	if errors.Is(err, common.ErrAlreadyInUse) {
		return models.Identity{}, common.NewAuthError(common.ErrAlreadyInUse, nil)
	}
	if err != nil {
		return models.Identity{}, common.NewAuthError(common.ErrAuthUnknown, err)
	}

	id := models.Identity{UID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}
	p.establish(ctx, id)
	p.log.Info(ctx, "signed up", "uid", id.UID)
	return id, nil
}

// SignOut forgets the current session and its persisted snapshot.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.store.RemoveItem(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("remove identity snapshot: %w", err)
	}
	p.setCurrent(nil)
	return nil
}

// Restore resumes a persisted session. It returns nil when there is none
// or when its token no longer verifies.
func (p *Provider) Restore(ctx context.Context) (*models.Identity, error) {
	raw, ok, err := p.store.GetItem(ctx, SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("read identity snapshot: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		p.log.Warn(ctx, "identity snapshot unreadable", "err", err)
		return nil, p.store.RemoveItem(ctx, SnapshotKey)
	}
	id, err := parseToken(snap.Token, p.secret, p.now())
	if err != nil {
		p.log.Info(ctx, "stored session expired", "uid", snap.UID, "err", err)
		return nil, p.store.RemoveItem(ctx, SnapshotKey)
	}

	p.setCurrent(&id)
	return &id, nil
}

// DeleteAccount removes the signed-in account and signs out.
func (p *Provider) DeleteAccount(ctx context.Context) error {
	cur := p.Current()
	if cur == nil {
		return common.ErrNoSession
	}
	if err := p.accounts.Delete(ctx, cur.UID); err != nil {
		return fmt.Errorf("delete account %s: %w", cur.UID, err)
	}
	return p.SignOut(ctx)
}

func (p *Provider) Current() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	c := *p.current
	return &c
}

// ObserveSession calls fn with the current identity now and after every
// change. The returned func unsubscribes.
func (p *Provider) ObserveSession(fn func(*models.Identity)) (cancel func()) {
	p.mu.Lock()
	n := p.nextObs
	p.nextObs++
	p.observers[n] = fn
	p.mu.Unlock()

	fn(p.Current())

	return func() {
		p.mu.Lock()
		delete(p.observers, n)
		p.mu.Unlock()
	}
}

func (p *Provider) establish(ctx context.Context, id models.Identity) {
	token, err := generateToken(id, p.secret, p.now(), p.ttl)
	if err == nil {
		var b []byte
		b, err = json.Marshal(snapshot{Identity: id, Token: token})
		if err == nil {
			err = p.store.SetItem(ctx, SnapshotKey, string(b))
		}
	}
	if err != nil {
		p.log.Warn(ctx, "session will not survive restart", "uid", id.UID, "err", err)
	}
	p.setCurrent(&id)
}

func (p *Provider) setCurrent(id *models.Identity) {
	p.mu.Lock()
	p.current = id
	fns := make([]func(*models.Identity), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		if id == nil {
			fn(nil)
			continue
		}
		c := *id
		fn(&c)
	}
}

func normalizeEmail(s string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil || addr.Name != "" {
		return "", common.NewAuthError(common.ErrInvalidCredentials, fmt.Errorf("invalid email %q", s))
	}
	return strings.ToLower(addr.Address), nil
}
