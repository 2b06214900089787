package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	identity "github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/secrets"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
)

// ErrMissingCredential is returned when a bearer or sigv4 request carries no credential.
var ErrMissingCredential = errors.New("no credential for remote target")

// StatusError is a non-2xx answer of a remote target.
type StatusError struct {
	Target string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("target %s answered HTTP %d", e.Target, e.Code)
	}
	return fmt.Sprintf("target %s answered HTTP %d: %s", e.Target, e.Code, e.Body)
}

type credentialKey struct{}

func withCredential(ctx context.Context, cred *identity.Credential) context.Context {
	if cred == nil {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, cred)
}

func credentialFrom(ctx context.Context) *identity.Credential {
	c, _ := ctx.Value(credentialKey{}).(*identity.Credential)
	return c
}

const maxErrorBody = 4 << 10

// authTransport authenticates every request to one target and turns non-2xx
// answers into *StatusError.
type authTransport struct {
	target  string
	cfg     *TargetConfig
	secrets secrets.Store
	base    http.RoundTripper
	signer  *v4.Signer
	now     func() time.Time
}

func newAuthTransport(target string, cfg *TargetConfig, store secrets.Store, base http.RoundTripper) *authTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{
		target:  target,
		cfg:     cfg,
		secrets: store,
		base:    base,
		signer:  v4.NewSigner(),
		now:     time.Now,
	}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if err := t.authenticate(req); err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &StatusError{Target: t.target, Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return resp, nil
}

func (t *authTransport) authenticate(req *http.Request) error {
	ctx := req.Context()
	switch t.cfg.Auth {
	case entity.AuthAPIKey:
		key, err := t.secret(ctx, t.cfg.APIKey.Secret)
		if err != nil {
			return err
		}
		req.Header.Set(t.cfg.APIKey.Header, key)
		return nil

	case entity.AuthSigV4:
		return t.sign(req)

	default:
		cred := credentialFrom(ctx)
		if cred == nil {
			return ErrMissingCredential
		}
		req.Header.Set("Authorization", "Bearer "+cred.Token)
		return nil
	}
}

func (t *authTransport) sign(req *http.Request) error {
	ctx := req.Context()
	cred := credentialFrom(ctx)
	if cred == nil {
		return ErrMissingCredential
	}
	accessKey, err := t.secret(ctx, t.cfg.SigV4.AccessKeySecret)
	if err != nil {
		return err
	}
	secretKey, err := t.secret(ctx, t.cfg.SigV4.SecretKeySecret)
	if err != nil {
		return err
	}

	var body []byte
	if req.Body != nil {
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return fmt.Errorf("read request body for signing: %w", err)
		}
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }

	sum := sha256.Sum256(body)
	creds := aws.Credentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    cred.Token,
		Source:          "agentcore",
	}
	return t.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), t.cfg.SigV4.Service, t.cfg.SigV4.Region, t.now())
}

func (t *authTransport) secret(ctx context.Context, key string) (string, error) {
	if t.secrets == nil {
		return "", fmt.Errorf("no secret store for target %s", t.target)
	}
	v, err := t.secrets.GetSecret(ctx, key)
	if err != nil {
		return "", fmt.Errorf("target %s: %w", t.target, err)
	}
	return v, nil
}
