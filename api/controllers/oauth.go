package controllers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/url"
	"time"

	"github.com/angelmondragon/localdrop/api/responses"
	"github.com/angelmondragon/localdrop/internal/identity"
	"github.com/angelmondragon/localdrop/pkg/config"
	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/angelmondragon/localdrop/pkg/logger"
)

const (
	oauthStateCookie = "ld_oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// IdentityProvider drives the third-party sign-in redirect flow.
type IdentityProvider interface {
	AuthURL(state string) string
	Complete(ctx context.Context, code string) (*identity.Outcome, error)
}

// GoogleLogin sets the state cookie and redirects to the consent screen.
func GoogleLogin(provider IdentityProvider, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "sign-in provider not configured"))
			return
		}

		state := identity.NewState()
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/api/auth/google",
			MaxAge:   int(oauthStateTTL.Seconds()),
			HttpOnly: true,
			Secure:   cfg.App.IsProd(),
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, provider.AuthURL(state), http.StatusFound)
	}
}

// GoogleCallback finishes the code flow. Recognised customers land on the
// home page; unknown or incomplete accounts go to profile completion.
func GoogleCallback(provider IdentityProvider, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if provider == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "sign-in provider not configured"))
			return
		}

		query := r.URL.Query()
		if reason := query.Get("error"); reason != "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign-in was cancelled").WithDetails(map[string]any{"reason": reason}))
			return
		}

		cookie, err := r.Cookie(oauthStateCookie)
		if err != nil || cookie.Value == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(query.Get("state"))) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign-in state mismatch"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/api/auth/google", MaxAge: -1})

		outcome, err := provider.Complete(ctx, query.Get("code"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params := url.Values{}
		params.Set("email", outcome.Info.Email)
		target := cfg.OAuth.HomeURL
		if outcome.NeedsProfile {
			target = cfg.OAuth.ProfileURL
			if outcome.Info.Name != "" {
				params.Set("name", outcome.Info.Name)
			}
		}
		if outcome.Profile != nil {
			params.Set("customer_id", outcome.Profile.UserID())
		}
		http.Redirect(w, r, withQuery(target, params), http.StatusFound)
	}
}

func withQuery(target string, params url.Values) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
