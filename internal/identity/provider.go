package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/angelmondragon/localdrop/pkg/config"
	pkgerrors "github.com/angelmondragon/localdrop/pkg/errors"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	providerGoogle             = "google"
	defaultUserInfoURL         = "https://openidconnect.googleapis.com/v1/userinfo"
	responseBodyReadLimit int64 = 1024
)

var defaultScopes = []string{"openid", "email", "profile"}

// SocialLogin is the marketplace call that maps a provider identity to a customer.
type SocialLogin interface {
	SocialLogin(ctx context.Context, req gateway.SocialLoginRequest) (*gateway.AuthResponse[gateway.CustomerProfile], error)
}

// Params configure the provider. Endpoint and UserInfoURL default to Google.
type Params struct {
	Config      config.OAuthConfig
	Gateway     SocialLogin
	HTTPClient  *http.Client
	Endpoint    *oauth2.Endpoint
	UserInfoURL string
	Logger      *logger.Logger
}

// Provider runs the authorization-code sign-in.
type Provider struct {
	oauth       *oauth2.Config
	gw          SocialLogin
	httpClient  *http.Client
	userInfoURL string
	logg        *logger.Logger
}

// UserInfo is the subset of the OpenID userinfo document we use.
type UserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Outcome of a completed sign-in. Profile is nil when the marketplace does
// not recognize the identity; NeedsProfile asks the caller to send the user
// to profile completion.
type Outcome struct {
	Info         UserInfo
	Profile      *gateway.CustomerProfile
	NeedsProfile bool
}

func New(p Params) (*Provider, error) {
	if !p.Config.Enabled() {
		return nil, errors.New("google client id and secret are required")
	}
	if p.Gateway == nil {
		return nil, errors.New("social login gateway is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.HTTPClient == nil {
		p.HTTPClient = http.DefaultClient
	}
	endpoint := google.Endpoint
	if p.Endpoint != nil {
		endpoint = *p.Endpoint
	}
	userInfoURL := strings.TrimSpace(p.UserInfoURL)
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     p.Config.GoogleClientID,
			ClientSecret: p.Config.GoogleClientSecret,
			RedirectURL:  p.Config.GoogleRedirectURL,
			Endpoint:     endpoint,
			Scopes:       defaultScopes,
		},
		gw:          p.Gateway,
		httpClient:  p.HTTPClient,
		userInfoURL: userInfoURL,
		logg:        p.Logger,
	}, nil
}

// NewState returns an unguessable value for the state parameter.
func NewState() string {
	return uuid.NewString()
}

// AuthURL is where the user is sent to consent.
func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Complete exchanges code, reads the userinfo document and signs the
// identity in against the marketplace.
func (p *Provider) Complete(ctx context.Context, code string) (*Outcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "exchange authorization code")
	}
	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Email == "" || !info.EmailVerified {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "google account email is not verified")
	}

	resp, err := p.gw.SocialLogin(ctx, gateway.SocialLoginRequest{
		Provider:   providerGoogle,
		ProviderID: info.Subject,
		Email:      info.Email,
		Name:       info.Name,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "social login")
	}

	out := &Outcome{Info: *info}
	if !resp.OK() || resp.User == nil || resp.User.UserID() == "" {
		out.NeedsProfile = true
		p.logg.Info(p.logg.WithField(ctx, "email", info.Email), "identity.unrecognized")
		return out, nil
	}
	out.Profile = resp.User
	out.NeedsProfile = strings.TrimSpace(resp.User.Phone) == ""
	return out, nil
}

func (p *Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build userinfo request")
	}
	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "userinfo request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode userinfo")
	}
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	return &info, nil
}
