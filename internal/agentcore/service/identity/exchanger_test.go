package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
)

func tokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if id, secret, ok := r.BasicAuth(); !ok || id != "agent" || secret != "s3cret" {
			t.Errorf("basic auth = %q/%q/%v", id, secret, ok)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuth2ExchangerIssuesCredential(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, `{"access_token":"abc","token_type":"bearer","expires_in":3600}`)
	ex := NewOAuth2Exchanger(srv.URL, "agent", "s3cret", srv.Client())

	c, err := ex.Exchange(context.Background(), []string{"b", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Token != "abc" {
		t.Errorf("token = %q", c.Token)
	}
	if d := time.Until(c.ExpiresAt); d < 59*time.Minute || d > time.Hour+time.Minute {
		t.Errorf("expiry in %s", d)
	}
	if strings.Join(c.Scope, " ") != "a b" {
		t.Errorf("scope = %v", c.Scope)
	}
}

func TestOAuth2ExchangerFallsBackToJWTExpiry(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	srv := tokenServer(t, http.StatusOK, `{"access_token":"`+tok+`","token_type":"bearer"}`)
	ex := NewOAuth2Exchanger(srv.URL, "agent", "s3cret", srv.Client())

	c, err := ex.Exchange(context.Background(), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if !c.ExpiresAt.Equal(exp) {
		t.Errorf("expiry = %s, want %s", c.ExpiresAt, exp)
	}
}

func TestOAuth2ExchangerClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"invalid scope", http.StatusBadRequest, `{"error":"invalid_scope"}`, errno.ErrScopeDenied},
		{"forbidden", http.StatusForbidden, `{"error":"nope"}`, errno.ErrScopeDenied},
		{"server error", http.StatusInternalServerError, `{"error":"server_error"}`, errno.ErrIdentityUnavailable},
		{"unavailable", http.StatusServiceUnavailable, `busy`, errno.ErrIdentityUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokenServer(t, tt.status, tt.body)
			ex := NewOAuth2Exchanger(srv.URL, "agent", "s3cret", srv.Client())
			_, err := ex.Exchange(context.Background(), []string{"a"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOAuth2ExchangerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ex := NewOAuth2Exchanger(url, "agent", "s3cret", &http.Client{Timeout: time.Second})
	_, err := ex.Exchange(context.Background(), []string{"a"})
	if !errors.Is(err, errno.ErrIdentityUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestModuleWithoutTokenURL(t *testing.T) {
	t.Setenv("AGENTCORE_SECRET_DEMO_KEY", "v1")
	cfg := &Config{}
	m, err := cfg.Complete().New(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	if m.Provider != nil {
		t.Error("provider should be nil without a token url")
	}
	if v, err := m.Secrets.GetSecret(context.Background(), "demo.key"); err != nil || v != "v1" {
		t.Errorf("secret = %q, %v", v, err)
	}
}

func TestModuleResolvesClientSecret(t *testing.T) {
	t.Setenv("AGENTCORE_SECRET_IDP_CLIENT", "s3cret")
	srv := tokenServer(t, http.StatusOK, `{"access_token":"abc","token_type":"bearer","expires_in":3600}`)
	cfg := &Config{TokenURL: srv.URL, ClientID: "agent", ClientSecret: "secret:idp-client"}
	m, err := cfg.Complete().New(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	c, err := m.Provider.GetCredential(context.Background(), []string{"gateway:invoke"})
	if err != nil || c.Token != "abc" {
		t.Fatalf("credential = %v, %v", c, err)
	}
}
