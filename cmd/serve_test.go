package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/config"
)

type recordingMessenger struct {
	mu   sync.Mutex
	sent []chat.OutgoingMessage
}

func (r *recordingMessenger) Send(_ context.Context, _ int64, msg chat.OutgoingMessage) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return len(r.sent), nil
}

func (r *recordingMessenger) AnswerAction(context.Context, string, string) error { return nil }

type noFiles struct{}

func (noFiles) Fetch(context.Context, string, string) (int64, error) { return 0, nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Store:    config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "payai.db")},
		LLM:      config.LLMConfig{Provider: "groq", APIKeys: []string{"k1"}},
		OCR:      config.OCRConfig{Provider: "tesseract"},
		Artifact: config.ArtifactConfig{Driver: "local", LocalDir: filepath.Join(dir, "bills"), RootFolderName: "Bills"},
		Intake:   config.IntakeConfig{ApprovedUsers: []string{"rahul"}, TempDir: filepath.Join(dir, "tmp"), Timezone: "UTC"},
		Compliance: config.ComplianceConfig{
			GroupChatID:  -1001,
			Participants: []string{"ram"},
			Timezone:     "Asia/Kolkata",
			StartHour:    9,
			EndHour:      21,
		},
		Retry: config.RetryConfig{MaxAttempts: 1},
	}
}

func TestBuildBot_IntakeOnly(t *testing.T) {
	c := testConfig(t)
	msgr := &recordingMessenger{}

	env, err := buildBot(context.Background(), c, msgr, noFiles{})
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Monitor)
	router, ok := env.Handler.(chat.Router)
	require.True(t, ok)
	assert.Nil(t, router.Group)

	env.Handler.HandleEvent(context.Background(), chat.Event{
		Kind:    chat.EventCommand,
		ChatID:  7,
		Sender:  chat.Sender{Username: "rahul"},
		Command: "start",
	})
	require.Len(t, msgr.sent, 1)
	assert.Contains(t, msgr.sent[0].Text, "Welcome")
}

func TestBuildBot_WithCompliance(t *testing.T) {
	c := testConfig(t)
	c.Compliance.Enabled = true

	env, err := buildBot(context.Background(), c, &recordingMessenger{}, noFiles{})
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Monitor)
	router := env.Handler.(chat.Router)
	assert.NotNil(t, router.Group)
}

func TestBuildBot_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"compliance without group", func(c *config.Config) { c.Compliance.Enabled = true; c.Compliance.GroupChatID = 0 }, "group_chat_id is required"},
		{"unknown llm provider", func(c *config.Config) { c.LLM.Provider = "oracle" }, "unknown llm provider"},
		{"unknown ocr provider", func(c *config.Config) { c.OCR.Provider = "eyes" }, "unknown provider"},
		{"unknown artifact driver", func(c *config.Config) { c.Artifact.Driver = "ftp" }, "unknown driver"},
		{"bad intake timezone", func(c *config.Config) { c.Intake.Timezone = "Nowhere/Land" }, "load timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t)
			tt.mutate(c)
			_, err := buildBot(context.Background(), c, &recordingMessenger{}, noFiles{})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOpenLedger_Migrates(t *testing.T) {
	c := testConfig(t)
	led, err := openLedger(context.Background(), c.Store)
	require.NoError(t, err)
	defer led.Close() //nolint:errcheck

	recs, err := led.ListByOwner(context.Background(), "rahul", 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestOpenLedger_UnknownDriver(t *testing.T) {
	_, err := openLedger(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.ErrorContains(t, err, "unknown driver")
}
