// Package session binds an identity to a persistence backend and exposes
// the vault commands (upload, delete, sort, select, download, profile) that
// the UI layer drives.
//
// A Manager lives for the whole process and owns the backend selector. Each
// sign-in (or local start) creates a Session; sign-out closes it, clears its
// projection and identity, and only then returns the selector to Local.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/secretvault/internal/client/adapters/remote"
	"github.com/dmitrijs2005/secretvault/internal/client/docstore"
	"github.com/dmitrijs2005/secretvault/internal/client/gallery"
	"github.com/dmitrijs2005/secretvault/internal/client/models"
	"github.com/dmitrijs2005/secretvault/internal/client/objectstore"
	"github.com/dmitrijs2005/secretvault/internal/client/selector"
	"github.com/dmitrijs2005/secretvault/internal/client/validation"
	"github.com/dmitrijs2005/secretvault/internal/common"
	"github.com/dmitrijs2005/secretvault/internal/logging"
)

// Adapter is the contract both persistence adapters satisfy.
type Adapter interface {
	Backend() models.Backend
	Put(ctx context.Context, ns string, f models.SourceFile, kind models.MediaKind) (models.FileRecord, error)
	List(ctx context.Context, ns string) ([]models.FileRecord, error)
	Delete(ctx context.Context, ns string, rec models.FileRecord) error
	Fetch(ctx context.Context, ns string, rec models.FileRecord) ([]byte, error)
}

// OrphanHandler re-runs or discards the tail of a failed remote put.
type OrphanHandler interface {
	WriteMetadata(ctx context.Context, ns string, p remote.Pending) (models.FileRecord, error)
	DiscardObject(ctx context.Context, path string) error
}

type clearer interface {
	Clear(ctx context.Context, ns string) error
}

type batchPutter interface {
	PutBatch(ctx context.Context, ns string, items []remote.Item, fn func(i int, rec models.FileRecord, err error))
}

type descender interface {
	Descending() bool
}

// IdentityProvider is the identity bridge the manager signs users in with.
type IdentityProvider interface {
	SignIn(ctx context.Context, creds models.Credentials) (models.Identity, error)
	SignUp(ctx context.Context, creds models.Credentials) (models.Identity, error)
	SignOut(ctx context.Context) error
	Restore(ctx context.Context) (*models.Identity, error)
	DeleteAccount(ctx context.Context) error
	ObserveSession(fn func(*models.Identity)) (cancel func())
}

// Deps are the collaborators of a Manager. Identity, Remote, Docs and
// Objects may all be nil, in which case only local sessions are available.
type Deps struct {
	Identity IdentityProvider
	Local    Adapter
	Remote   Adapter
	Docs     docstore.Store
	Objects  objectstore.Store
	Logger   logging.Logger
}

type Config struct {
	Upload  validation.Policy
	Profile validation.Policy
	// ProfileSize is the edge of the square profile picture.
	ProfileSize int
	// RetryAttempts and RetryBase drive the backoff of orphan recovery.
	RetryAttempts uint64
	RetryBase     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Upload:        validation.DefaultPolicy(),
		Profile:       validation.ProfilePolicy(),
		ProfileSize:   512,
		RetryAttempts: 3,
		RetryBase:     100 * time.Millisecond,
	}
}

type Manager struct {
	deps     Deps
	cfg      Config
	log      logging.Logger
	selector *selector.Selector
	now      func() time.Time

	// ops serializes lifecycle transitions; mu guards current.
	ops       sync.Mutex
	mu        sync.Mutex
	current   *Session
	unobserve func()
}

func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if cfg.ProfileSize <= 0 {
		cfg.ProfileSize = DefaultConfig().ProfileSize
	}
	m := &Manager{
		deps:     deps,
		cfg:      cfg,
		log:      deps.Logger.With("component", "session"),
		selector: selector.New(),
		now:      time.Now,
	}
	if deps.Identity != nil {
		m.unobserve = deps.Identity.ObserveSession(m.onIdentity)
	}
	return m
}

// Close unsubscribes from the identity provider. It does not sign out.
func (m *Manager) Close() {
	if m.unobserve != nil {
		m.unobserve()
	}
}

// Backend is the selector state.
func (m *Manager) Backend() models.Backend { return m.selector.Current() }

// Choose records the user's backend choice before a session exists.
func (m *Manager) Choose(b models.Backend) error {
	if b == models.BackendRemote && !m.remoteAvailable() {
		return fmt.Errorf("choose %s: %w", b, common.ErrBackendUnavailable)
	}
	return m.selector.Choose(b)
}

// Current returns the open session or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) remoteAvailable() bool {
	return m.deps.Identity != nil && m.deps.Remote != nil
}

// StartLocal opens a session for the local pseudo-identity.
func (m *Manager) StartLocal(ctx context.Context) (*Session, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	if m.Current() != nil {
		return nil, common.ErrSessionActive
	}
	if err := m.selector.Choose(models.BackendLocal); err != nil {
		return nil, err
	}
	return m.establish(ctx, models.LocalIdentity()), nil
}

func (m *Manager) SignIn(ctx context.Context, creds models.Credentials) (*Session, error) {
	return m.authenticate(ctx, creds, false)
}

func (m *Manager) SignUp(ctx context.Context, creds models.Credentials) (*Session, error) {
	return m.authenticate(ctx, creds, true)
}

// SignInOrSignUp signs in, creating the account first if it does not exist.
func (m *Manager) SignInOrSignUp(ctx context.Context, creds models.Credentials) (*Session, error) {
	s, err := m.SignIn(ctx, creds)
	if errors.Is(err, common.ErrNotFound) {
		m.log.Info(ctx, "account not found, signing up", "email", creds.Email)
		return m.SignUp(ctx, creds)
	}
	return s, err
}

func (m *Manager) authenticate(ctx context.Context, creds models.Credentials, signUp bool) (*Session, error) {
	if !m.remoteAvailable() {
		return nil, common.ErrBackendUnavailable
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	if m.Current() != nil {
		return nil, common.ErrSessionActive
	}

	var (
		id  models.Identity
		err error
	)
	if signUp {
		id, err = m.deps.Identity.SignUp(ctx, creds)
	} else {
		id, err = m.deps.Identity.SignIn(ctx, creds)
	}
	if err != nil {
		return nil, err
	}
	if err := m.selector.ForceRemote(); err != nil {
		return nil, err
	}

	m.writeProfile(ctx, id, signUp)
	return m.establish(ctx, id), nil
}

// Restore resumes a persisted remote session. It returns nil, nil when there
// is nothing to resume.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	if !m.remoteAvailable() {
		return nil, nil
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	if s := m.Current(); s != nil {
		return s, nil
	}
	id, err := m.deps.Identity.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore identity: %w", err)
	}
	if id == nil {
		return nil, nil
	}
	if err := m.selector.ForceRemote(); err != nil {
		return nil, err
	}
	m.log.Info(ctx, "session restored", "uid", id.UID)
	return m.establish(ctx, *id), nil
}

// SignOut closes the current session. The projection and identity are
// cleared before the selector returns to Local.
func (m *Manager) SignOut(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()
	return m.signOut(ctx)
}

func (m *Manager) signOut(ctx context.Context) error {
	s := m.detach(func(*Session) bool { return true })
	if s == nil {
		return common.ErrNoSession
	}

	s.close()
	var err error
	if s.backend == models.BackendRemote {
		err = m.deps.Identity.SignOut(ctx)
	}
	m.selector.Reset()
	m.log.Info(ctx, "signed out", "uid", s.uid, "backend", s.backend)
	return err
}

// DeleteAccount removes every record of the current user, then the profile
// picture and user document for remote accounts, then the account itself.
// The session is closed afterwards.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	s := m.Current()
	if s == nil {
		return common.ErrNoSession
	}

	report, err := s.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("delete account: records kept: %w", err)
	}

	if s.backend == models.BackendRemote {
		if _, err := s.PurgeOrphans(ctx); err != nil {
			m.log.Warn(ctx, "orphans left behind", "uid", s.uid, "err", err)
		}
		if err := m.deleteProfileData(ctx, s.uid); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if err := m.deps.Identity.DeleteAccount(ctx); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
	}

	err = m.signOut(ctx)
	if errors.Is(err, common.ErrNoSession) {
		err = nil
	}
	return err
}

func (m *Manager) deleteProfileData(ctx context.Context, uid string) error {
	if m.deps.Objects != nil {
		err := m.deps.Objects.Delete(ctx, ProfilePicturePath(uid))
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return common.NewStorageError(common.ErrDeleteFailed, ProfilePicturePath(uid), err)
		}
	}
	if m.deps.Docs != nil {
		err := m.deps.Docs.Delete(ctx, usersCollection, uid)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return common.NewStorageError(common.ErrDeleteFailed, UserDoc(uid), err)
		}
	}
	return nil
}

// onIdentity tears down a remote session when the identity provider reports
// that nobody is signed in.
func (m *Manager) onIdentity(id *models.Identity) {
	if id != nil {
		return
	}
	s := m.detach(func(s *Session) bool { return s.backend == models.BackendRemote })
	if s == nil {
		return
	}
	s.close()
	m.selector.Reset()
	m.log.Info(context.Background(), "identity ended, session closed", "uid", s.uid)
}

func (m *Manager) detach(match func(*Session) bool) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.current
	if s == nil || !match(s) {
		return nil
	}
	m.current = nil
	return s
}

func (m *Manager) establish(ctx context.Context, id models.Identity) *Session {
	b := m.selector.Lock()

	adapter := m.deps.Local
	if b == models.BackendRemote {
		adapter = m.deps.Remote
	}
	prepend := false
	if d, ok := adapter.(descender); ok {
		prepend = d.Descending()
	}

	s := &Session{
		m:          m,
		identity:   id,
		uid:        id.UID,
		backend:    b,
		adapter:    adapter,
		projection: gallery.New(gallery.WithPrepend(prepend)),
		log:        m.log.With("uid", id.UID, "backend", b),
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn(ctx, "gallery not loaded", "err", err)
	}
	s.log.Info(ctx, "session started")
	return s
}
