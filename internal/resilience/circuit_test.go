package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sells-group/payai/internal/config"
)

var errFail = errors.New("fail")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Execute(context.Background(), func(_ context.Context) error { return errFail })
	}
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker("drive", 3, time.Minute)

	var calls int
	err := b.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("drive", 3, time.Minute)
	failN(b, 3)

	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	err := b.Execute(context.Background(), func(_ context.Context) error {
		t.Error("should not be called while open")
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker("drive", 3, time.Minute)
	failN(b, 2)
	_ = b.Execute(context.Background(), func(_ context.Context) error { return nil })
	failN(b, 2)

	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	b := NewBreaker("drive", 1, 30*time.Second)
	b.now = func() time.Time { return now }

	failN(b, 1)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(31 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	err := b.Execute(context.Background(), func(_ context.Context) error { return nil })
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	b := NewBreaker("drive", 1, 30*time.Second)
	b.now = func() time.Time { return now }

	failN(b, 1)
	now = now.Add(time.Minute)
	failN(b, 1)

	if b.State() != BreakerOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	b := NewBreaker("drive", 100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(_ context.Context) error {
				if i%2 == 0 {
					return errFail
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestExecuteVal(t *testing.T) {
	b := NewBreaker("drive", 1, time.Minute)

	val, err := ExecuteVal(context.Background(), b, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || val != "ok" {
		t.Fatalf("expected ok, got %q, %v", val, err)
	}

	failN(b, 1)
	val, err = ExecuteVal(context.Background(), b, func(_ context.Context) (string, error) {
		return "unreachable", nil
	})
	if !errors.Is(err, ErrBreakerOpen) || val != "" {
		t.Errorf("expected open breaker and zero value, got %q, %v", val, err)
	}
}

func TestBreakerFromConfig(t *testing.T) {
	b := BreakerFromConfig("drive", config.RetryConfig{FailureThreshold: 2, ResetTimeoutSecs: 5})
	if b.failureThreshold != 2 || b.cooldown != 5*time.Second {
		t.Errorf("unexpected breaker settings: %d, %v", b.failureThreshold, b.cooldown)
	}

	def := BreakerFromConfig("drive", config.RetryConfig{})
	if def.failureThreshold != 5 || def.cooldown != 30*time.Second {
		t.Errorf("expected defaults, got %d, %v", def.failureThreshold, def.cooldown)
	}
}

func TestBreakerState_String(t *testing.T) {
	cases := map[BreakerState]string{
		BreakerClosed:    "closed",
		BreakerOpen:      "open",
		BreakerHalfOpen:  "half-open",
		BreakerState(42): "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}
