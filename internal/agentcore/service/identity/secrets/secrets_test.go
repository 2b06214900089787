package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
)

type countingStore struct {
	StaticStore
	hits int
}

func (c *countingStore) GetSecret(ctx context.Context, key string) (string, error) {
	c.hits++
	return c.StaticStore.GetSecret(ctx, key)
}

func TestEnvStore(t *testing.T) {
	t.Setenv("AGENTCORE_SECRET_GW_API_KEY", "prefixed")
	t.Setenv("OTHER_TOKEN", "bare")
	ctx := context.Background()

	if v, _ := (EnvStore{}).GetSecret(ctx, "gw/api-key"); v != "prefixed" {
		t.Errorf("prefixed = %q", v)
	}
	if v, _ := (EnvStore{}).GetSecret(ctx, "other.token"); v != "bare" {
		t.Errorf("bare = %q", v)
	}
	if _, err := (EnvStore{}).GetSecret(ctx, "missing"); !errors.Is(err, errno.ErrSecretNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestChainStore(t *testing.T) {
	ctx := context.Background()
	chain := ChainStore{StaticStore{"a": "1"}, StaticStore{"a": "2", "b": "3"}}
	if v, _ := chain.GetSecret(ctx, "a"); v != "1" {
		t.Errorf("a = %q", v)
	}
	if v, _ := chain.GetSecret(ctx, "b"); v != "3" {
		t.Errorf("b = %q", v)
	}
	if _, err := chain.GetSecret(ctx, "c"); !errors.Is(err, errno.ErrSecretNotFound) {
		t.Errorf("c err = %v", err)
	}
	if _, err := (ChainStore{}).GetSecret(ctx, "c"); !errors.Is(err, errno.ErrSecretNotFound) {
		t.Errorf("empty chain err = %v", err)
	}
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{StaticStore: StaticStore{"k": "v"}}
	c := NewCachedStore(inner, 4, time.Minute)

	for i := 0; i < 3; i++ {
		if v, err := c.GetSecret(ctx, "k"); err != nil || v != "v" {
			t.Fatalf("get = %q, %v", v, err)
		}
	}
	if inner.hits != 1 {
		t.Errorf("inner hits = %d, want 1", inner.hits)
	}
	_, _ = c.GetSecret(ctx, "nope")
	_, _ = c.GetSecret(ctx, "nope")
	if inner.hits != 3 {
		t.Errorf("misses must not be cached, hits = %d", inner.hits)
	}
	c.Purge()
	_, _ = c.GetSecret(ctx, "k")
	if inner.hits != 4 {
		t.Errorf("purge should force a lookup, hits = %d", inner.hits)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("RESOLVE_ME", "from-env")
	ctx := context.Background()
	store := StaticStore{"api": "from-store"}

	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"plain", "plain", false},
		{"${RESOLVE_ME}", "from-env", false},
		{"secret:api", "from-store", false},
		{"secret:missing", "", true},
	}
	for _, tt := range tests {
		got, err := Resolve(ctx, store, tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v", tt.in, got, err)
		}
	}
	if _, err := Resolve(ctx, nil, "secret:api"); err == nil {
		t.Error("secret reference without a store should fail")
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.json")
	if err := os.WriteFile(path, []byte(`{"gw/api-key":"one"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan struct{}, 4)
	fs, err := OpenFileStore(path, func() { reloaded <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer fs.Close()

	ctx := context.Background()
	if v, _ := fs.GetSecret(ctx, "gw/api-key"); v != "one" {
		t.Fatalf("initial = %q", v)
	}
	if _, err := fs.GetSecret(ctx, "other"); !errors.Is(err, errno.ErrSecretNotFound) {
		t.Errorf("missing err = %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"gw/api-key":"two"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("secret file was not reloaded")
	}
	if v, _ := fs.GetSecret(ctx, "gw/api-key"); v != "two" {
		t.Errorf("after reload = %q", v)
	}
}

func TestOpenFileStoreRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	_ = os.WriteFile(path, []byte(`not json`), 0o600)
	if _, err := OpenFileStore(path, nil); err == nil {
		t.Fatal("expected parse error")
	}
}
