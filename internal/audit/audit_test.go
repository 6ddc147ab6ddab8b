package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/supportbot/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	entry := Entry{
		ID:        "test-1",
		Timestamp: ts,
		ActorType: ActorOperator,
		ActorID:   "admin",
		Action:    ActionTicketAnswered,
		TicketID:  "t-42",
		Summary:   "Try turning it off and on",
	}

	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if got.ActorType != ActorOperator {
		t.Errorf("ActorType = %q, want %q", got.ActorType, ActorOperator)
	}
	if got.Action != ActionTicketAnswered {
		t.Errorf("Action = %q, want %q", got.Action, ActionTicketAnswered)
	}
	if got.TicketID != "t-42" {
		t.Errorf("TicketID = %q, want %q", got.TicketID, "t-42")
	}
	if got.Summary != "Try turning it off and on" {
		t.Errorf("Summary = %q, want %q", got.Summary, "Try turning it off and on")
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestLogActionGeneratesIDAndTimestamp(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.LogAction(ctx, "chat-1", ActionText, "hello"); err != nil {
		t.Fatalf("LogAction: %v", err)
	}

	entries, err := store.Query(ctx, QueryFilter{ActorID: "chat-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected generated ID, got empty string")
	}
	if entries[0].ActorType != ActorUser {
		t.Errorf("ActorType = %q, want %q", entries[0].ActorType, ActorUser)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestQueryFilterByActor(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, actor := range []string{"alice", "bob", "alice"} {
		if err := store.LogAction(ctx, actor, ActionButton, "main_menu"); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{ActorID: "alice"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for alice, got %d", len(entries))
	}
}

func TestQueryFilterByActionAndTicket(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, e := range []Entry{
		{ActorType: ActorSystem, ActorID: "engine", Action: ActionTicketCreated, TicketID: "t-1"},
		{ActorType: ActorSystem, ActorID: "engine", Action: ActionTicketCreated, TicketID: "t-2"},
		{ActorType: ActorUser, ActorID: "chat-1", Action: ActionTicketClosed, TicketID: "t-1"},
	} {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Action: ActionTicketCreated})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 ticket_created entries, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{TicketID: "t-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for t-1, got %d", len(entries))
	}
}

func TestQueryTimeWindow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.Log(ctx, Entry{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			ActorType: ActorUser,
			ActorID:   "chat-1",
			Action:    ActionText,
		}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	since := base.Add(30 * time.Minute)
	entries, err := store.Query(ctx, QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries since %v, got %d", since, len(entries))
	}
	if len(entries) > 0 && !entries[0].Timestamp.Equal(base.Add(2*time.Hour)) {
		t.Errorf("first entry = %v, want newest first", entries[0].Timestamp)
	}
}

func TestQueryLimitOffset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.LogAction(ctx, "alice", ActionText, "msg"); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries with limit, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry with offset 4, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Offset: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries with offset only, got %d", len(entries))
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.LogAction(ctx, "chat-1", ActionText, "msg"); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	deleted, err := store.DeleteBefore(ctx, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}

	entries, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 remaining entries, got %d", len(entries))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)

	if _, err := store.GetByID(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for nonexistent ID, got nil")
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)

	if err := store.Log(context.Background(), Entry{
		ID:        "http-1",
		ActorType: ActorUser,
		ActorID:   "chat-1",
		Action:    ActionButton,
	}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit/http-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "http-1" {
		t.Errorf("ID = %q, want %q", got.ID, "http-1")
	}
	if got.ActorID != "chat-1" {
		t.Errorf("ActorID = %q, want %q", got.ActorID, "chat-1")
	}
}

func TestHTTPGetByIDNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHTTPQueryEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestHTTPQueryWithFilter(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	for _, actor := range []string{"alice", "bob", "alice"} {
		if err := store.LogAction(ctx, actor, ActionText, "msg"); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit?actor=alice&limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for alice, got %d", len(entries))
	}
}

func TestFilterFromQuery(t *testing.T) {
	f := FilterFromQuery(map[string][]string{
		"actor":  {"chat-1"},
		"action": {"button"},
		"ticket": {"t-1"},
		"since":  {"2026-01-01T00:00:00Z"},
		"limit":  {"bogus"},
		"offset": {"5"},
	})
	if f.ActorID != "chat-1" || f.Action != ActionButton || f.TicketID != "t-1" {
		t.Errorf("filter = %+v", f)
	}
	if f.Since == nil {
		t.Error("since should be parsed")
	}
	if f.Limit != 0 {
		t.Errorf("Limit = %d, want 0 for unparseable value", f.Limit)
	}
	if f.Offset != 5 {
		t.Errorf("Offset = %d, want 5", f.Offset)
	}
}
