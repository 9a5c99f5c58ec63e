package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/payai/internal/model"
	"github.com/sells-group/payai/internal/resilience"
)

// scriptedBackend answers per credential. Credentials missing from the
// script succeed with reply.
type scriptedBackend struct {
	mu      sync.Mutex
	errs    map[string]error
	reply   string
	calls   []string
	lastReq Request
}

func (b *scriptedBackend) Complete(_ context.Context, cred string, req Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, cred)
	b.lastReq = req
	if err, ok := b.errs[cred]; ok {
		return "", err
	}
	return b.reply, nil
}

func throttled() error {
	return resilience.NewStatusError(errors.New("rate limit reached"), 429)
}

func rejected() error {
	return resilience.NewStatusError(errors.New("invalid api key"), 401)
}

var fixedNow = time.Date(2025, 3, 7, 15, 4, 0, 0, time.UTC)

func newTestGateway(b Backend, creds ...string) *Gateway {
	return New(b, resilience.NewRotatingPool(creds), WithClock(func() time.Time { return fixedNow }))
}

func TestExtractFields_EndToEnd(t *testing.T) {
	b := &scriptedBackend{reply: `{"amount": "Rs 1,250.00", "currency": "", "vendor": "Acme", "expense_date": "", "payment_method": "UPI", "category_hint": "Food", "notes": "lunch"}`}
	g := newTestGateway(b, "k0")

	ext, err := g.ExtractFields(context.Background(), "Total: Rs 1,250.00 Vendor: Acme")
	require.NoError(t, err)

	assert.Equal(t, 1250.0, ext.Fields.Amount)
	assert.Equal(t, "Acme", ext.Fields.Vendor)
	assert.Equal(t, "INR", ext.Fields.Currency)
	assert.Equal(t, "2025-03-07", ext.Fields.ExpenseDate)
	assert.Equal(t, model.CategoryFood, ext.Fields.Category)
	assert.Equal(t, b.reply, ext.Raw)
	assert.True(t, b.lastReq.JSON)
	assert.Contains(t, b.lastReq.Prompt, "Total: Rs 1,250.00 Vendor: Acme")
}

func TestExtractFields_MalformedResponseUsesDefaults(t *testing.T) {
	b := &scriptedBackend{reply: "sorry, I cannot read this bill"}
	g := newTestGateway(b, "k0")

	ext, err := g.ExtractFields(context.Background(), "blurry")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ext.Fields.Amount)
	assert.Equal(t, DefaultVendor, ext.Fields.Vendor)
	assert.Equal(t, model.CategoryOther, ext.Fields.Category)
	assert.Equal(t, "sorry, I cannot read this bill", ext.Raw)
}

func TestExtractFields_RotationBound(t *testing.T) {
	for n := 1; n <= 3; n++ {
		creds := []string{"k0", "k1", "k2"}[:n]
		b := &scriptedBackend{errs: map[string]error{"k0": throttled(), "k1": rejected(), "k2": throttled()}}
		g := newTestGateway(b, creds...)

		_, err := g.ExtractFields(context.Background(), "text")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExtractionUnavailable)
		assert.ErrorIs(t, err, ErrAllCredentialsExhausted)
		assert.Len(t, b.calls, n)

		var ue *UnavailableError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, n, ue.Attempts)
	}
}

func TestExtractFields_SucceedsOnKthAttempt(t *testing.T) {
	b := &scriptedBackend{
		errs:  map[string]error{"k0": throttled(), "k1": rejected()},
		reply: `{"amount": 10}`,
	}
	g := newTestGateway(b, "k0", "k1", "k2", "k3")

	ext, err := g.ExtractFields(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 10.0, ext.Fields.Amount)
	assert.Equal(t, []string{"k0", "k1", "k2"}, b.calls)

	// The next call starts on the credential that worked.
	_, err = g.ExtractFields(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "k2", b.calls[3])
}

func TestExtractFields_FatalErrorNoRotation(t *testing.T) {
	b := &scriptedBackend{errs: map[string]error{"k0": errors.New("connection refused")}}
	g := newTestGateway(b, "k0", "k1")

	_, err := g.ExtractFields(context.Background(), "text")
	assert.ErrorIs(t, err, ErrExtractionUnavailable)
	assert.NotErrorIs(t, err, ErrAllCredentialsExhausted)
	assert.Equal(t, []string{"k0"}, b.calls)
}

func TestExtractFields_NoCredentials(t *testing.T) {
	b := &scriptedBackend{}
	g := newTestGateway(b)

	_, err := g.ExtractFields(context.Background(), "text")
	assert.ErrorIs(t, err, ErrExtractionUnavailable)
	assert.ErrorIs(t, err, ErrNoCredentialsConfigured)
	assert.Empty(t, b.calls)
}

func TestGenerateText(t *testing.T) {
	b := &scriptedBackend{reply: "  roasted  "}
	g := newTestGateway(b, "k0")
	assert.Equal(t, "roasted", g.GenerateText(context.Background(), "roast them", "fallback"))
	assert.False(t, b.lastReq.JSON)

	b = &scriptedBackend{errs: map[string]error{"k0": throttled()}}
	g = newTestGateway(b, "k0")
	assert.Equal(t, "fallback", g.GenerateText(context.Background(), "roast them", "fallback"))

	g = newTestGateway(&scriptedBackend{reply: "   "}, "k0")
	assert.Equal(t, "fallback", g.GenerateText(context.Background(), "roast them", "fallback"))
}

func TestExtractCompliance(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    model.ComplianceFigures
		wantErr bool
	}{
		{
			name:  "complete",
			reply: `{"total": 20, "using": 15, "not_using": 5, "group_label": "Line A"}`,
			want:  model.ComplianceFigures{Total: 20, Using: 15, NotUsing: 5, GroupLabel: "Line A"},
		},
		{
			name:  "string counts and missing total",
			reply: "```json\n{\"using\": \"12\", \"not_using\": \"3\", \"group_label\": null}\n```",
			want:  model.ComplianceFigures{Total: 15, Using: 12, NotUsing: 3},
		},
		{
			name:  "inconsistent not_using",
			reply: `{"total": 30, "using": 25, "not_using": 1}`,
			want:  model.ComplianceFigures{Total: 30, Using: 25, NotUsing: 5},
		},
		{name: "negative", reply: `{"total": 5, "using": -1}`, wantErr: true},
		{name: "missing using", reply: `{"total": 5}`, wantErr: true},
		{name: "not json", reply: `all good here`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(&scriptedBackend{reply: tt.reply}, "k0")
			got, raw, err := g.ExtractCompliance(context.Background(), "20 people, 15 wearing")
			assert.Equal(t, tt.reply, raw)
			if tt.wantErr {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrExtractionUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestExtractCompliance_Unavailable(t *testing.T) {
	g := newTestGateway(&scriptedBackend{errs: map[string]error{"k0": throttled()}}, "k0")
	_, _, err := g.ExtractCompliance(context.Background(), "msg")
	assert.ErrorIs(t, err, ErrExtractionUnavailable)
}

func TestRoastPrompt(t *testing.T) {
	p := RoastPrompt(15, []string{"alice", "@bob"}, "")
	assert.Contains(t, p, "15-minute")
	assert.Contains(t, p, "@alice, @bob")
	assert.Contains(t, p, "headbands")

	assert.Equal(t, "Yo @alice, where's the update? Stop being lazy!", RoastFallback([]string{"alice"}))
}
