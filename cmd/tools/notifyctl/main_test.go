// cmd/tools/notifyctl/main_test.go
package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestContext(t *testing.T) (*commandContext, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := &commandContext{
		loadConfig: func(string) (*config.Config, error) {
			cfg := &config.Config{}
			cfg.Notifications.SecretKey = strings.Repeat("k", 32)
			cfg.Integrations.HTTP.Timeout = 1000
			return cfg, nil
		},
		openDB: func(config.PostgresConfig) (*sql.DB, error) { return db, nil },
	}
	return ctx, mock
}

func runCLI(t *testing.T, ctx *commandContext, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var templateColumns = []string{
	"id", "organization_id", "name", "description", "notification_type",
	"notification_configuration", "messages", "created", "modified",
}

var notificationColumns = []string{
	"id", "notification_template_id", "notification_type", "status", "recipients",
	"subject", "body", "error", "notifications_sent", "source_event_id", "created", "modified",
}

// ==========================
// Channel Command Tests
// ==========================

func TestChannelsCommand(t *testing.T) {
	ctx, _ := newTestContext(t)

	out, err := runCLI(t, ctx, "channels")

	require.NoError(t, err)
	for _, want := range []string{"slack", "webhook", "pagerduty", "telegram", "Encrypted"} {
		assert.Contains(t, out, want)
	}
}

func TestChannelsCommand_JSON(t *testing.T) {
	ctx, _ := newTestContext(t)

	out, err := runCLI(t, ctx, "channels", "--json")

	require.NoError(t, err)
	var channels []registry.Channel
	require.NoError(t, json.Unmarshal([]byte(out), &channels))
	assert.Len(t, channels, 11)
}

func TestRegistryExportAndCheck(t *testing.T) {
	ctx, _ := newTestContext(t)
	path := filepath.Join(t.TempDir(), "channels.json")

	out, err := runCLI(t, ctx, "registry", "export", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "11 channels")

	out, err = runCLI(t, ctx, "registry", "check", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	stale := &registry.ChannelRegistry{Version: registry.Version, Channels: []registry.Channel{{Type: "fax"}}}
	require.NoError(t, registry.SaveRegistry(path, stale))
	_, err = runCLI(t, ctx, "registry", "check", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown channel fax")
	assert.Contains(t, err.Error(), "missing channel slack")
}

// ==========================
// Store-backed Command Tests
// ==========================

func TestTemplatesList(t *testing.T) {
	ctx, mock := newTestContext(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	mock.ExpectQuery("FROM notification_templates").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(templateColumns).AddRow(
			id.String(), int64(3), "ops-slack", "", "slack",
			[]byte(`{"channels":["#ops"],"token":"$encrypted$AESGCM$abc"}`), []byte(`{}`), now, now,
		))

	out, err := runCLI(t, ctx, "templates", "list", "--org", "3")

	require.NoError(t, err)
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "ops-slack")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplatesList_JSONMasksSecrets(t *testing.T) {
	ctx, mock := newTestContext(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM notification_templates").
		WillReturnRows(sqlmock.NewRows(templateColumns).AddRow(
			uuid.New().String(), int64(1), "ops-slack", "", "slack",
			[]byte(`{"channels":["#ops"],"token":"$encrypted$AESGCM$abc"}`), []byte(`{}`), now, now,
		))

	out, err := runCLI(t, ctx, "templates", "list", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"token": "$encrypted$"`)
	assert.NotContains(t, out, "AESGCM")
}

func TestNotificationsList(t *testing.T) {
	ctx, mock := newTestContext(t)
	now := time.Now().UTC()
	id := uuid.New()

	mock.ExpectQuery("FROM notifications").
		WithArgs(nil, "failed", int64(10)).
		WillReturnRows(sqlmock.NewRows(notificationColumns).AddRow(
			id.String(), uuid.New().String(), "webhook", "failed", `["https://x"]`,
			"Job #7 failed", []byte(`{}`), "HTTP 500", int64(0), int64(7), now, now,
		))

	out, err := runCLI(t, ctx, "notifications", "list", "--status", "failed", "--limit", "10")

	require.NoError(t, err)
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "HTTP 500")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad status", []string{"notifications", "list", "--status", "sent"}, "invalid status"},
		{"bad template id", []string{"templates", "show", "nope"}, "invalid id"},
		{"bad event kind", []string{"templates", "attach", "5", uuid.NewString(), "--on", "done"}, "invalid event kind"},
		{"bad job template", []string{"templates", "detach", "x", uuid.NewString()}, "invalid job template id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, mock := newTestContext(t)

			_, err := runCLI(t, ctx, tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTemplatesAttach(t *testing.T) {
	ctx, mock := newTestContext(t)
	id := uuid.New()

	mock.ExpectExec("INSERT INTO job_template_notification_templates").
		WithArgs(int64(5), id.String(), "success").
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := runCLI(t, ctx, "templates", "attach", "5", id.String(), "--on", "success")

	require.NoError(t, err)
	assert.Contains(t, out, "attached for job template 5 on success")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplatesApply_RejectsInvalidTemplate(t *testing.T) {
	ctx, mock := newTestContext(t)
	path := filepath.Join(t.TempDir(), "tpl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"hook","notification_type":"webhook","notification_configuration":{}}`), 0o644))

	_, err := runCLI(t, ctx, "templates", "apply", "-f", path)

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
