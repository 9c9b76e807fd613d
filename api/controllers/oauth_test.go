package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/internal/identity"
	"github.com/angelmondragon/localdrop/pkg/config"
	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	outcome  *identity.Outcome
	err      error
	gotCode  string
	gotState string
}

func (s *stubProvider) AuthURL(state string) string {
	s.gotState = state
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (s *stubProvider) Complete(_ context.Context, code string) (*identity.Outcome, error) {
	s.gotCode = code
	return s.outcome, s.err
}

func oauthConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Env: "dev"},
		OAuth: config.OAuthConfig{HomeURL: "https://shop.example/home", ProfileURL: "https://shop.example/complete-profile"},
	}
}

func callback(t *testing.T, provider IdentityProvider, query string, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?"+query, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookie})
	}
	rec := httptest.NewRecorder()
	GoogleCallback(provider, oauthConfig(), nil)(rec, req)
	return rec
}

func TestGoogleLoginSetsStateCookie(t *testing.T) {
	provider := &stubProvider{}
	rec := httptest.NewRecorder()
	GoogleLogin(provider, oauthConfig(), nil)(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, oauthStateCookie, cookies[0].Name)
	assert.Equal(t, provider.gotState, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Contains(t, rec.Header().Get("Location"), url.QueryEscape(provider.gotState))
}

func TestGoogleCallbackRoutesKnownCustomerHome(t *testing.T) {
	provider := &stubProvider{outcome: &identity.Outcome{
		Info:    identity.UserInfo{Email: "a@gmail.com", Name: "Ana"},
		Profile: &gateway.CustomerProfile{ID: "42", Phone: "555"},
	}}
	rec := callback(t, provider, "state=s1&code=c1", "s1")

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/home", loc.Path)
	assert.Equal(t, "42", loc.Query().Get("customer_id"))
	assert.Equal(t, "c1", provider.gotCode)
}

func TestGoogleCallbackRoutesUnknownToProfileCompletion(t *testing.T) {
	provider := &stubProvider{outcome: &identity.Outcome{
		Info:         identity.UserInfo{Email: "new@gmail.com", Name: "New User"},
		NeedsProfile: true,
	}}
	rec := callback(t, provider, "state=s1&code=c1", "s1")

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/complete-profile", loc.Path)
	assert.Equal(t, "new@gmail.com", loc.Query().Get("email"))
	assert.Equal(t, "New User", loc.Query().Get("name"))
	assert.Empty(t, loc.Query().Get("customer_id"))
}

func TestGoogleCallbackRejectsStateMismatch(t *testing.T) {
	provider := &stubProvider{}
	rec := callback(t, provider, "state=forged&code=c1", "s1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, provider.gotCode)

	rec = callback(t, provider, "state=s1&code=c1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleCallbackSurfacesProviderErrors(t *testing.T) {
	provider := &stubProvider{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "google account email is not verified")}
	rec := callback(t, provider, "state=s1&code=c1", "s1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = callback(t, &stubProvider{}, "error=access_denied&state=s1", "s1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleRoutesWithoutProvider(t *testing.T) {
	rec := httptest.NewRecorder()
	GoogleLogin(nil, oauthConfig(), nil)(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
