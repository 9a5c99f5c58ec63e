package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/compliance"
)

func TestParseFireTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 16, 0, 0, time.UTC)

	got, err := parseFireTime("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseFireTime("2024-03-01T10:16:00+05:30", now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 1, 4, 46, 0, 0, time.UTC)))

	_, err = parseFireTime("10:16", now)
	assert.ErrorContains(t, err, "invalid --at")
}

func TestFormatCheckResult(t *testing.T) {
	window := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		res  compliance.Result
		want []string
	}{
		{
			name: "missing",
			res:  compliance.Result{Grid: compliance.Grid15, Window: window, Checked: 3, Missing: []string{"ram", "kiran"}, Sent: true},
			want: []string{"2024-03-01 10:00 UTC (15 min)", "checked: 3", "missing: ram, kiran", "sent:    true"},
		},
		{
			name: "all reported",
			res:  compliance.Result{Grid: compliance.Grid60, Window: window, Checked: 3},
			want: []string{"(60 min)", "missing: none"},
		},
		{
			name: "skipped",
			res:  compliance.Result{Grid: compliance.Grid15, Window: window, Skipped: true},
			want: []string{"outside active hours"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatCheckResult(&buf, &tt.res)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPrintMessenger(t *testing.T) {
	var buf bytes.Buffer
	var m chat.Messenger = printMessenger{out: &buf}

	_, err := m.Send(context.Background(), -1001, chat.OutgoingMessage{Text: "wake up"})
	require.NoError(t, err)
	assert.Equal(t, "--- to -1001 ---\nwake up\n", buf.String())
	assert.NoError(t, m.AnswerAction(context.Background(), "cb", "ok"))
}
