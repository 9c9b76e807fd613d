package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth[P Profile] struct {
	mu         sync.Mutex
	login      *gateway.AuthResponse[P]
	loginErr   error
	logins     int
	profile    *P
	profileErr error
	gate       chan struct{}
}

func (f *fakeAuth[P]) Login(context.Context, gateway.LoginRequest) (*gateway.AuthResponse[P], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.login, f.loginErr
}

func (f *fakeAuth[P]) Profile(context.Context, string) (*P, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.profileErr
}

func authOK[P Profile](p P) *gateway.AuthResponse[P] {
	return &gateway.AuthResponse[P]{Envelope: gateway.Envelope{Msg: gateway.MsgDone}, User: &p}
}

type countingCart struct{ cleared int }

func (c *countingCart) Clear(context.Context) { c.cleared++ }

func newStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.NewStore(state.NewMemoryBackend(), nil)
	require.NoError(t, err)
	return store
}

func TestLoginPersistsIdentityOnSuccessMarker(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	auth := &fakeAuth[gateway.CustomerProfile]{login: authOK(gateway.CustomerProfile{ID: "4", Name: "Ayesha"})}
	m, err := NewCustomerSession(auth, store, nil, nil)
	require.NoError(t, err)

	var seen []Identity[gateway.CustomerProfile]
	m.Subscribe(func(id Identity[gateway.CustomerProfile]) { seen = append(seen, id) })

	res := m.Login(ctx, gateway.LoginRequest{Identifier: " ayesha@gmail.com ", Password: "secret"})
	require.True(t, res.Success, res.Message)

	id, ok := store.Get(ctx, state.KeyUserID)
	assert.True(t, ok)
	assert.Equal(t, "4", id)
	var cached gateway.CustomerProfile
	require.True(t, store.GetJSON(ctx, state.KeyUserProfile, &cached))
	assert.Equal(t, "Ayesha", cached.Name)
	assert.True(t, m.Current().Authenticated)
	require.Len(t, seen, 1)
	assert.Equal(t, "4", seen[0].ID)
}

func TestLoginRejectionLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	auth := &fakeAuth[gateway.CustomerProfile]{login: &gateway.AuthResponse[gateway.CustomerProfile]{
		Envelope: gateway.Envelope{Msg: "Wrong password"},
	}}
	m, err := NewCustomerSession(auth, store, nil, nil)
	require.NoError(t, err)

	res := m.Login(ctx, gateway.LoginRequest{Identifier: "a@gmail.com", Password: "nope"})
	assert.False(t, res.Success)
	assert.Equal(t, "Wrong password", res.Message)
	_, ok := store.Get(ctx, state.KeyUserID)
	assert.False(t, ok)
	assert.False(t, m.Current().Authenticated)

	auth.login, auth.loginErr = nil, errors.New("dial tcp: timeout")
	res = m.Login(ctx, gateway.LoginRequest{Identifier: "a@gmail.com", Password: "nope"})
	assert.False(t, res.Success)
	assert.Equal(t, "dial tcp: timeout", res.Message)
}

func TestLoginValidatesBeforeCalling(t *testing.T) {
	auth := &fakeAuth[gateway.StoreProfile]{}
	m, err := NewStoreSession(auth, newStore(t), nil)
	require.NoError(t, err)

	res := m.Login(context.Background(), gateway.LoginRequest{Identifier: "   ", Password: "x"})
	assert.Equal(t, msgCredentialsRequired, res.Message)
	assert.Zero(t, auth.logins)
}

func TestRoleSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := &countingCart{}
	customer, err := NewCustomerSession(&fakeAuth[gateway.CustomerProfile]{login: authOK(gateway.CustomerProfile{ID: "4"})}, store, c, nil)
	require.NoError(t, err)
	rider, err := NewRiderSession(&fakeAuth[gateway.RiderProfile]{login: authOK(gateway.RiderProfile{ID: "17"})}, store, nil, nil)
	require.NoError(t, err)
	storeSess, err := NewStoreSession(&fakeAuth[gateway.StoreProfile]{login: authOK(gateway.StoreProfile{ID: "8"})}, store, nil)
	require.NoError(t, err)

	creds := gateway.LoginRequest{Identifier: "x@gmail.com", Password: "pw"}
	require.True(t, customer.Login(ctx, creds).Success)
	require.True(t, rider.Login(ctx, creds).Success)
	require.True(t, storeSess.Login(ctx, creds).Success)
	store.Set(ctx, state.KeyCartNo, "482913574829135")
	store.Set(ctx, state.KeyLangText, `{"home":"Home"}`)
	store.Set(ctx, state.KeyLat, "31.52")
	store.Set(ctx, state.KeyRiderOnline, "0")

	rider.Logout(ctx)
	for _, k := range []state.Key{state.KeyRiderID, state.KeyRiderProfile, state.KeyRiderOnline} {
		_, ok := store.Get(ctx, k)
		assert.False(t, ok, "%s should be wiped", k)
	}
	for _, k := range []state.Key{state.KeyUserID, state.KeyUserProfile, state.KeyCartNo, state.KeyLangText, state.KeyLat, state.KeyStoreUserID} {
		_, ok := store.Get(ctx, k)
		assert.True(t, ok, "%s should survive rider logout", k)
	}
	assert.True(t, customer.Current().Authenticated)

	require.True(t, rider.Login(ctx, creds).Success)
	customer.Logout(ctx)
	_, ok := store.Get(ctx, state.KeyUserID)
	assert.False(t, ok)
	_, ok = store.Get(ctx, state.KeyCartNo)
	assert.False(t, ok)
	riderID, ok := store.Get(ctx, state.KeyRiderID)
	assert.True(t, ok)
	assert.Equal(t, "17", riderID)
	storeID, ok := store.Get(ctx, state.KeyStoreUserID)
	assert.True(t, ok)
	assert.Equal(t, "8", storeID)
	assert.Equal(t, 1, c.cleared)
	assert.True(t, rider.Current().Authenticated)
}

func TestLoadUserAdoptsCacheThenRefreshes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	store.Set(ctx, state.KeyUserID, "4")
	require.NoError(t, store.SetJSON(ctx, state.KeyUserProfile, gateway.CustomerProfile{ID: "4", Name: "Old"}))

	auth := &fakeAuth[gateway.CustomerProfile]{profile: &gateway.CustomerProfile{ID: "4", Name: "New"}, gate: make(chan struct{})}
	m, err := NewCustomerSession(auth, store, nil, nil)
	require.NoError(t, err)

	id := m.LoadUser(ctx)
	assert.True(t, id.Authenticated)
	assert.Equal(t, "Old", id.Profile.Name)

	close(auth.gate)
	require.Eventually(t, func() bool { return m.Current().Profile.Name == "New" }, time.Second, 5*time.Millisecond)
	var cached gateway.CustomerProfile
	require.Eventually(t, func() bool {
		return store.GetJSON(ctx, state.KeyUserProfile, &cached) && cached.Name == "New"
	}, time.Second, 5*time.Millisecond)
}

func TestRefreshFailureKeepsCachedProfile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	store.Set(ctx, state.KeyRiderID, "17")
	require.NoError(t, store.SetJSON(ctx, state.KeyRiderProfile, gateway.RiderProfile{ID: "17", Name: "Bilal"}))

	auth := &fakeAuth[gateway.RiderProfile]{profileErr: errors.New("network down"), gate: make(chan struct{})}
	m, err := NewRiderSession(auth, store, nil, nil)
	require.NoError(t, err)
	m.LoadUser(ctx)
	close(auth.gate)

	require.Error(t, m.Refresh(ctx))
	assert.Equal(t, "Bilal", m.Current().Profile.Name)
}

func TestRefreshAfterLogoutIsDropped(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	auth := &fakeAuth[gateway.CustomerProfile]{
		login:   authOK(gateway.CustomerProfile{ID: "4", Name: "Ayesha"}),
		profile: &gateway.CustomerProfile{ID: "4", Name: "Late"},
	}
	m, err := NewCustomerSession(auth, store, nil, nil)
	require.NoError(t, err)
	require.True(t, m.Login(ctx, gateway.LoginRequest{Identifier: "a@gmail.com", Password: "pw"}).Success)

	auth.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- m.Refresh(ctx) }()
	m.Logout(ctx)
	close(auth.gate)
	require.NoError(t, <-done)

	assert.False(t, m.Current().Authenticated)
	_, ok := store.Get(ctx, state.KeyUserProfile)
	assert.False(t, ok)
}

func TestLoadUserAnonymousWithoutPersistedID(t *testing.T) {
	m, err := NewStoreSession(&fakeAuth[gateway.StoreProfile]{}, newStore(t), nil)
	require.NoError(t, err)
	assert.False(t, m.LoadUser(context.Background()).Authenticated)
}
