package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/identity/pkg/errno"
)

type fakeExchanger struct {
	calls atomic.Int32
	gate  chan struct{}
	fn    func(n int32, scope []string) (*entity.Credential, error)
}

func (f *fakeExchanger) Exchange(_ context.Context, scope []string) (*entity.Credential, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.fn(n, scope)
}

func tokenFor(now time.Time, ttl time.Duration) func(int32, []string) (*entity.Credential, error) {
	return func(n int32, scope []string) (*entity.Credential, error) {
		return &entity.Credential{Token: fmt.Sprintf("tok-%d", n), ExpiresAt: now.Add(ttl), Scope: scope}, nil
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestConcurrentCallersShareOneExchange(t *testing.T) {
	now := time.Now()
	ex := &fakeExchanger{gate: make(chan struct{}), fn: tokenFor(now, time.Hour)}
	p, err := NewProvider(ex, ProviderConfig{}, WithNow(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	const n = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		creds = make([]*entity.Credential, n)
		errs  = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			creds[i], errs[i] = p.GetCredential(context.Background(), []string{"gateway:invoke", "metrics:read"})
		}(i)
	}
	close(start)
	time.Sleep(50 * time.Millisecond)
	close(ex.gate)
	wg.Wait()

	if got := ex.calls.Load(); got != 1 {
		t.Fatalf("exchanges = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if creds[i] != creds[0] {
			t.Fatalf("caller %d received a different credential", i)
		}
	}
}

func TestCacheHonoursSafetyMargin(t *testing.T) {
	now := time.Now()
	clock := now
	ex := &fakeExchanger{fn: tokenFor(now, 5*time.Minute)}
	p, _ := NewProvider(ex, ProviderConfig{SafetyMargin: time.Minute}, WithNow(func() time.Time { return clock }))

	ctx := context.Background()
	first, _ := p.GetCredential(ctx, []string{"b", "a"})
	again, _ := p.GetCredential(ctx, []string{"a", " b ", "a"})
	if first != again || ex.calls.Load() != 1 {
		t.Fatalf("normalized scope should hit the cache (calls=%d)", ex.calls.Load())
	}

	clock = now.Add(4*time.Minute + 30*time.Second)
	refreshed, _ := p.GetCredential(ctx, []string{"a", "b"})
	if refreshed == first || ex.calls.Load() != 2 {
		t.Fatalf("credential inside the safety margin must be refreshed (calls=%d)", ex.calls.Load())
	}
	if first.Token != "tok-1" {
		t.Errorf("refresh must not mutate the old credential, got %q", first.Token)
	}
}

func TestRetriesThenIdentityUnavailable(t *testing.T) {
	ex := &fakeExchanger{fn: func(int32, []string) (*entity.Credential, error) {
		return nil, errors.New("connection refused")
	}}
	var sleeps []time.Duration
	p, _ := NewProvider(ex, ProviderConfig{BaseBackoff: 10 * time.Millisecond}, WithSleep(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}))

	_, err := p.GetCredential(context.Background(), []string{"s"})
	if !errors.Is(err, errno.ErrIdentityUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if ex.calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", ex.calls.Load())
	}
	if len(sleeps) != 2 || sleeps[0] != 10*time.Millisecond || sleeps[1] != 20*time.Millisecond {
		t.Errorf("backoff = %v", sleeps)
	}
}

func TestTransientFailureRecovers(t *testing.T) {
	now := time.Now()
	ex := &fakeExchanger{fn: func(n int32, scope []string) (*entity.Credential, error) {
		if n < 3 {
			return nil, fmt.Errorf("%w: 503", errno.ErrIdentityUnavailable)
		}
		return tokenFor(now, time.Hour)(n, scope)
	}}
	p, _ := NewProvider(ex, ProviderConfig{}, WithSleep(noSleep))
	c, err := p.GetCredential(context.Background(), []string{"s"})
	if err != nil || c.Token != "tok-3" {
		t.Fatalf("got %v, %v", c, err)
	}
}

func TestScopeDeniedIsNotRetried(t *testing.T) {
	ex := &fakeExchanger{fn: func(int32, []string) (*entity.Credential, error) {
		return nil, fmt.Errorf("%w: invalid_scope", errno.ErrScopeDenied)
	}}
	p, _ := NewProvider(ex, ProviderConfig{}, WithSleep(noSleep))
	_, err := p.GetCredential(context.Background(), []string{"admin"})
	if !errors.Is(err, errno.ErrScopeDenied) {
		t.Fatalf("err = %v", err)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("attempts = %d, want 1", ex.calls.Load())
	}
}

func TestInvalidateForcesExchange(t *testing.T) {
	ex := &fakeExchanger{fn: tokenFor(time.Now(), time.Hour)}
	p, _ := NewProvider(ex, ProviderConfig{})
	ctx := context.Background()
	_, _ = p.GetCredential(ctx, []string{"s"})
	p.Invalidate([]string{"s"})
	_, _ = p.GetCredential(ctx, []string{"s"})
	if ex.calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", ex.calls.Load())
	}
}

func TestWaiterCancellation(t *testing.T) {
	ex := &fakeExchanger{gate: make(chan struct{}), fn: tokenFor(time.Now(), time.Hour)}
	p, _ := NewProvider(ex, ProviderConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.GetCredential(ctx, []string{"s"})
	close(ex.gate)
	if !errors.Is(err, errno.ErrIdentityUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
