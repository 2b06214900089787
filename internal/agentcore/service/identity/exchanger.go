package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Exchanger exchanges client credentials for an access token.
type OAuth2Exchanger struct {
	TokenURL       string
	ClientID       string
	ClientSecret   string
	EndpointParams url.Values
	HTTPClient     *http.Client
	// DefaultTTL applies when neither the response nor the token carries an expiry.
	DefaultTTL time.Duration

	now func() time.Time
}

func NewOAuth2Exchanger(tokenURL, clientID, clientSecret string, httpClient *http.Client) *OAuth2Exchanger {
	return &OAuth2Exchanger{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   httpClient,
		DefaultTTL:   time.Hour,
		now:          time.Now,
	}
}

func (e *OAuth2Exchanger) Exchange(ctx context.Context, scope []string) (*entity.Credential, error) {
	cfg := &clientcredentials.Config{
		ClientID:       e.ClientID,
		ClientSecret:   e.ClientSecret,
		TokenURL:       e.TokenURL,
		Scopes:         scope,
		EndpointParams: e.EndpointParams,
		AuthStyle:      oauth2.AuthStyleInHeader,
	}
	if e.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.HTTPClient)
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	now := time.Now
	if e.now != nil {
		now = e.now
	}
	expires := tok.Expiry
	if expires.IsZero() {
		if exp, ok := jwtExpiry(tok.AccessToken); ok {
			expires = exp
		} else {
			ttl := e.DefaultTTL
			if ttl <= 0 {
				ttl = time.Hour
			}
			expires = now().Add(ttl)
		}
	}

	return &entity.Credential{
		Token:     tok.AccessToken,
		ExpiresAt: expires,
		Scope:     entity.NormalizeScope(scope),
	}, nil
}

// classifyExchangeError separates rejections of the request from failures to reach the service.
func classifyExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_scope", "unauthorized_client", "access_denied", "invalid_client":
			return fmt.Errorf("%w: %s", errno.ErrScopeDenied, re.Error())
		}
		if re.Response != nil {
			switch re.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return fmt.Errorf("%w: %s", errno.ErrScopeDenied, re.Error())
			}
		}
	}
	return fmt.Errorf("%w: %w", errno.ErrIdentityUnavailable, err)
}

// jwtExpiry reads the exp claim without verifying the signature; the token is
// only being scheduled for refresh here, never trusted.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
