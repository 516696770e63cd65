package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithActor(context.Background(), Actor{Username: "alice", Permissions: []string{"Finance.GL.View"}})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	require.True(t, actor.IsAuthenticated())
	require.True(t, actor.HasPermission(" finance.gl.view "))
	require.False(t, actor.HasPermission(PermFinanceGLPost))
	require.False(t, Actor{Username: "  "}.IsAuthenticated())
}

func TestFinanceScopesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, scope := range FinanceScopes() {
		require.False(t, seen[scope], scope)
		seen[scope] = true
	}
	require.Len(t, seen, 8)
}

func TestSlogAuditorRecord(t *testing.T) {
	var buf bytes.Buffer
	auditor := SlogAuditor{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := auditor.Record(context.Background(), AuditLog{Actor: "bob", Action: "journal.post"})
	require.Error(t, err)
	require.Zero(t, buf.Len())

	require.NoError(t, auditor.Record(context.Background(), AuditLog{
		Actor:    "bob",
		Action:   "journal.post",
		Entity:   "journal_entry",
		EntityID: "42",
		Meta:     map[string]any{"journal_number": "JV-2026-00001"},
		At:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "audit", record["msg"])
	require.Equal(t, "journal.post", record["action"])
	require.Equal(t, "42", record["entity_id"])
}

func TestAuditLoggerRequiresPool(t *testing.T) {
	var logger *AuditLogger
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
	require.Error(t, NewAuditLogger(nil).Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
}
