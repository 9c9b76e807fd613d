package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/angelmondragon/localdrop/internal/cart"
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/angelmondragon/localdrop/pkg/logger"
)

const (
	msgCredentialsRequired = "Please enter your email or phone and password"
	msgLoginFailed         = "Invalid credentials, please try again"
)

type Result = cart.Result

// Profile is any role profile carrying the identity the session persists.
type Profile interface {
	UserID() string
}

// Authenticator is the role-scoped login and profile fetch.
type Authenticator[P Profile] interface {
	Login(ctx context.Context, req gateway.LoginRequest) (*gateway.AuthResponse[P], error)
	Profile(ctx context.Context, id string) (*P, error)
}

// Identity is the observable session state. The zero value is anonymous.
type Identity[P Profile] struct {
	Authenticated bool
	ID            string
	Profile       P
}

// Params configure a role session manager.
type Params[P Profile] struct {
	Auth   Authenticator[P]
	Store  *state.Store
	Keys   Keys
	Logger *logger.Logger
	// OnLogout runs before the role keys are wiped.
	OnLogout []func(ctx context.Context)
}

// Manager is the anonymous/authenticated state machine of one role.
type Manager[P Profile] struct {
	auth     Authenticator[P]
	store    *state.Store
	keys     Keys
	logg     *logger.Logger
	onLogout []func(ctx context.Context)

	mu      sync.RWMutex
	current Identity[P]
	// bumped on every login and logout so stale refreshes are dropped
	gen uint64

	listenersMu sync.Mutex
	listeners   map[int]func(Identity[P])
	nextID      int
}

func NewManager[P Profile](p Params[P]) (*Manager[P], error) {
	if p.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if p.Store == nil {
		return nil, errors.New("state store is required")
	}
	if p.Keys.ID == "" || p.Keys.Profile == "" {
		return nil, errors.New("session keys are required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &Manager[P]{
		auth:      p.Auth,
		store:     p.Store,
		keys:      p.Keys,
		logg:      p.Logger,
		onLogout:  p.OnLogout,
		listeners: map[int]func(Identity[P]){},
	}, nil
}

// Login authenticates against the role gateway. State only changes on a
// server success marker.
func (m *Manager[P]) Login(ctx context.Context, req gateway.LoginRequest) Result {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		return Result{Message: msgCredentialsRequired}
	}
	ctx = m.logg.WithRole(ctx, m.keys.Role)

	resp, err := m.auth.Login(ctx, req)
	if err != nil {
		return Result{Message: gateway.Normalize(err).Message}
	}
	if !resp.OK() || resp.User == nil || (*resp.User).UserID() == "" {
		return Result{Message: resp.Failure(msgLoginFailed)}
	}
	if err := m.Adopt(ctx, *resp.User); err != nil {
		m.logg.WarnErr(ctx, "session.login.persist_failed", err)
	}
	return Result{Success: true}
}

// Adopt persists an externally authenticated profile, e.g. after a social
// sign-in, and transitions to authenticated.
func (m *Manager[P]) Adopt(ctx context.Context, profile P) error {
	id := profile.UserID()
	if id == "" {
		return errors.New("profile has no id")
	}
	m.store.Set(ctx, m.keys.ID, id)
	err := m.store.SetJSON(ctx, m.keys.Profile, profile)

	m.mu.Lock()
	m.gen++
	m.current = Identity[P]{Authenticated: true, ID: id, Profile: profile}
	m.mu.Unlock()

	m.logg.Info(m.logg.WithUserID(ctx, id), "session.authenticated")
	m.notify()
	return err
}

// Logout runs the role hooks, wipes the role's keys and returns to anonymous.
// Keys owned by other roles are never touched.
func (m *Manager[P]) Logout(ctx context.Context) {
	ctx = m.logg.WithRole(ctx, m.keys.Role)
	for _, hook := range m.onLogout {
		hook(ctx)
	}
	m.store.Remove(ctx, m.keys.wiped()...)

	m.mu.Lock()
	m.gen++
	m.current = Identity[P]{}
	m.mu.Unlock()

	m.logg.Info(ctx, "session.logged_out")
	m.notify()
}

// LoadUser adopts the persisted identity immediately and refreshes the
// profile in the background. A failed refresh keeps the cached profile.
func (m *Manager[P]) LoadUser(ctx context.Context) Identity[P] {
	id, ok := m.store.Get(ctx, m.keys.ID)
	if !ok || id == "" || id == state.NullLiteral {
		return Identity[P]{}
	}
	var profile P
	m.store.GetJSON(ctx, m.keys.Profile, &profile)

	m.mu.Lock()
	m.current = Identity[P]{Authenticated: true, ID: id, Profile: profile}
	m.mu.Unlock()
	m.notify()

	bg := context.WithoutCancel(m.logg.WithRole(ctx, m.keys.Role))
	go func() {
		if err := m.Refresh(bg); err != nil {
			m.logg.WarnErr(m.logg.WithUserID(bg, id), "session.profile.refresh_failed", err)
		}
	}()
	return m.Current()
}

// Refresh re-fetches the profile of the current identity. The result is
// dropped when the session changed while the call was outstanding.
func (m *Manager[P]) Refresh(ctx context.Context) error {
	m.mu.RLock()
	cur, gen := m.current, m.gen
	m.mu.RUnlock()
	if !cur.Authenticated {
		return nil
	}

	profile, err := m.auth.Profile(ctx, cur.ID)
	if err != nil {
		return err
	}
	if profile == nil {
		return errors.New("empty profile response")
	}

	m.mu.Lock()
	if m.gen != gen || !m.current.Authenticated || m.current.ID != cur.ID {
		m.mu.Unlock()
		return nil
	}
	m.current.Profile = *profile
	m.mu.Unlock()

	if err := m.store.SetJSON(ctx, m.keys.Profile, *profile); err != nil {
		return err
	}
	m.notify()
	return nil
}

func (m *Manager[P]) Current() Identity[P] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers fn for identity changes and returns its remover.
func (m *Manager[P]) Subscribe(fn func(Identity[P])) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()
	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Manager[P]) notify() {
	cur := m.Current()
	m.listenersMu.Lock()
	fns := make([]func(Identity[P]), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()
	for _, fn := range fns {
		fn(cur)
	}
}
