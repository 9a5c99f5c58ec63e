package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/gateway"
	"github.com/sells-group/payai/internal/ledger"
	"github.com/sells-group/payai/internal/resilience"
)

// openLedger connects to and migrates the configured ledger.
func openLedger(ctx context.Context, c config.StoreConfig) (ledger.Ledger, error) {
	led, err := ledger.Open(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "open ledger")
	}
	if err := led.Migrate(ctx); err != nil {
		_ = led.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}
	return led, nil
}

// lazyLedger defers openLedger until the first read or write.
func lazyLedger(c config.StoreConfig) *ledger.Lazy {
	return ledger.NewLazy(func(ctx context.Context) (ledger.Ledger, error) {
		return openLedger(ctx, c)
	})
}

// initGateway builds the extraction gateway over the configured LLM
// provider and credential pool. The pool may be empty; callers then get
// gateway.ErrNoCredentialsConfigured per request rather than at startup.
func initGateway(c *config.Config) (*gateway.Gateway, error) {
	backend, err := gateway.NewBackend(c)
	if err != nil {
		return nil, err
	}

	opts := []gateway.Option{gateway.WithTemperature(c.LLM.Temperature)}
	if c.Intake.Timezone != "" {
		loc, err := time.LoadLocation(c.Intake.Timezone)
		if err != nil {
			return nil, eris.Wrapf(err, "load timezone %q", c.Intake.Timezone)
		}
		opts = append(opts, gateway.WithLocation(loc))
	}
	return gateway.New(backend, resilience.NewRotatingPool(c.LLM.APIKeys), opts...), nil
}
