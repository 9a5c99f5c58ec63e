package artifact

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/resilience"
)

// Resilient retries transient store failures and trips a breaker after
// repeated failures. Every error it returns matches ErrUploadFailed.
type Resilient struct {
	inner   Store
	policy  resilience.RetryPolicy
	breaker *resilience.Breaker
}

// NewResilient wraps inner using the retry config section.
func NewResilient(inner Store, cfg config.RetryConfig) *Resilient {
	p := resilience.PolicyFromConfig(cfg)
	p.OnRetry = resilience.LogRetries("artifact", "store")
	return &Resilient{
		inner:   inner,
		policy:  p,
		breaker: resilience.BreakerFromConfig("artifact", cfg),
	}
}

func (r *Resilient) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	id, err := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (string, error) {
		return resilience.DoVal(ctx, r.policy, func(ctx context.Context) (string, error) {
			return r.inner.EnsureFolder(ctx, name, parentID)
		})
	})
	if err != nil {
		return "", eris.Wrapf(ErrUploadFailed, "ensure folder %q: %v", name, err)
	}
	return id, nil
}

func (r *Resilient) Upload(ctx context.Context, localPath, remoteName, mimeType, folderID string) (*File, error) {
	f, err := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*File, error) {
		return resilience.DoVal(ctx, r.policy, func(ctx context.Context) (*File, error) {
			return r.inner.Upload(ctx, localPath, remoteName, mimeType, folderID)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(ErrUploadFailed, "upload %s: %v", remoteName, err)
	}
	return f, nil
}
