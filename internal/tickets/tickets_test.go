package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/supportbot/internal/bots/botstest"
	"github.com/ziadkadry99/supportbot/internal/clock"
	"github.com/ziadkadry99/supportbot/internal/db"
)

const adminID = "admin"

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("t%d", n)
	}
}

func setupRegistry(t *testing.T, store Persister) (*Registry, *botstest.Recorder) {
	t.Helper()
	rec := botstest.New()
	reg := NewRegistry(RegistryConfig{
		AdminChatID: adminID,
		Transport:   rec,
		Store:       store,
		Clock:       clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		NewID:       sequentialIDs(),
	})
	return reg, rec
}

func createAndNotify(t *testing.T, reg *Registry) Ticket {
	t.Helper()
	tk := reg.Create(context.Background(), "user-1", "Connection issue", "", "Contract number: A-100")
	require.NoError(t, reg.NotifyAdmin(context.Background(), tk.ID))
	return tk
}

// --- header ---

func TestHeaderRoundTrip(t *testing.T) {
	text := Render(Ticket{ID: "3f2a-9c", SessionID: "42", ProblemType: "Other", Identity: "Address: Main St"})
	id, ok := ParseHeader(text)
	require.True(t, ok)
	assert.Equal(t, "3f2a-9c", id)
	assert.True(t, strings.HasPrefix(text, "📩 New ticket (ID: 3f2a-9c)\n"))
	assert.Contains(t, text, "Details: Not specified")
}

func TestParseHeaderVariants(t *testing.T) {
	tests := []struct {
		text string
		id   string
		ok   bool
	}{
		{"📩 New ticket (ID: abc)", "abc", true},
		{"📩 **New ticket (ID: abc)**\nUser: 1", "abc", true},
		{"Forwarded:\n📩 New ticket (ID: xyz)\nmore", "xyz", true},
		{"New ticket (ID: abc)", "", false},
		{"📩 New ticket (ID: )", "", false},
		{"hello operator", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := ParseHeader(tt.text)
		if ok != tt.ok || id != tt.id {
			t.Errorf("ParseHeader(%q) = %q, %v; want %q, %v", tt.text, id, ok, tt.id, tt.ok)
		}
	}
}

// --- registry ---

func TestCreateBindsCorrelation(t *testing.T) {
	reg, _ := setupRegistry(t, nil)
	tk := reg.Create(context.Background(), "user-1", "Router issue", "", "")

	assert.Equal(t, StatusUnanswered, tk.Status)
	owner, ok := reg.Owner(tk.ID)
	require.True(t, ok)
	assert.Equal(t, "user-1", owner)
	assert.Equal(t, 1, reg.OpenCount())
}

func TestCreateAllocatesUniqueIDs(t *testing.T) {
	rec := botstest.New()
	reg := NewRegistry(RegistryConfig{AdminChatID: adminID, Transport: rec})
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tk := reg.Create(context.Background(), "u", "Other", "", "")
		require.False(t, seen[tk.ID], "duplicate id %s", tk.ID)
		seen[tk.ID] = true
	}
}

func TestNotifyAdminSendsOnce(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	require.NoError(t, reg.NotifyAdmin(context.Background(), tk.ID))

	sends := rec.Sends(adminID)
	require.Len(t, sends, 1)
	n, ok := reg.Notification(tk.ID)
	require.True(t, ok)
	assert.Equal(t, sends[0].Ref, n.Ref)
	assert.Equal(t, sends[0].Text, n.LastRendered)

	id, ok := reg.TicketForMessage(n.Ref)
	require.True(t, ok)
	assert.Equal(t, tk.ID, id)
}

func TestNotifyAdminUnknownTicket(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	err := reg.NotifyAdmin(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
	assert.Empty(t, rec.Messages(adminID))
}

func TestNotifyAdminSendFailure(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := reg.Create(context.Background(), "user-1", "Other", "", "")
	rec.FailSends(true)

	assert.ErrorIs(t, reg.NotifyAdmin(context.Background(), tk.ID), botstest.ErrInjected)
	_, ok := reg.Notification(tk.ID)
	assert.False(t, ok)
}

func TestUpdateAdminNotificationIdempotent(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	ctx := context.Background()

	text := "📩 New ticket (ID: t1)\nupdated"
	require.NoError(t, reg.UpdateAdminNotification(ctx, tk.ID, text))
	require.NoError(t, reg.UpdateAdminNotification(ctx, tk.ID, text))

	edits := rec.Edits(adminID)
	require.Len(t, edits, 1)
	assert.Equal(t, text, edits[0].Text)

	n, _ := reg.Notification(tk.ID)
	assert.Equal(t, text, n.LastRendered)
}

func TestUpdateAdminNotificationSameAsInitialIsNoop(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	n, _ := reg.Notification(tk.ID)

	require.NoError(t, reg.UpdateAdminNotification(context.Background(), tk.ID, n.LastRendered))
	assert.Empty(t, rec.Edits(adminID))
}

func TestUpdateAdminNotificationConcurrentIdentical(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.UpdateAdminNotification(context.Background(), tk.ID, "same text")
		}()
	}
	wg.Wait()
	assert.Len(t, rec.Edits(adminID), 1)
}

func TestUpdateAdminNotificationEditFailureRestores(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	before, _ := reg.Notification(tk.ID)
	ctx := context.Background()

	rec.FailEdits(true)
	assert.Error(t, reg.UpdateAdminNotification(ctx, tk.ID, "new"))
	after, _ := reg.Notification(tk.ID)
	assert.Equal(t, before.LastRendered, after.LastRendered)

	rec.FailEdits(false)
	require.NoError(t, reg.UpdateAdminNotification(ctx, tk.ID, "new"))
	assert.Len(t, rec.Edits(adminID), 1)
}

func TestAppendToNotification(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	ctx := context.Background()

	require.NoError(t, reg.AppendToNotification(ctx, tk.ID, "Additional message: still down"))
	require.NoError(t, reg.AppendToNotification(ctx, tk.ID, "Updated by operator: rebooting line"))

	n, _ := reg.Notification(tk.ID)
	lines := strings.Split(n.LastRendered, "\n")
	assert.Equal(t, "Updated by operator: rebooting line", lines[len(lines)-1])
	assert.Equal(t, "Additional message: still down", lines[len(lines)-2])
	assert.Len(t, rec.Edits(adminID), 2)

	id, ok := ParseHeader(n.LastRendered)
	require.True(t, ok, "header must stay parseable after appends")
	assert.Equal(t, tk.ID, id)
}

func TestUpdateWithoutNotification(t *testing.T) {
	reg, _ := setupRegistry(t, nil)
	tk := reg.Create(context.Background(), "user-1", "Other", "", "")
	assert.ErrorIs(t, reg.UpdateAdminNotification(context.Background(), tk.ID, "x"), ErrNoNotification)
	assert.ErrorIs(t, reg.AppendToNotification(context.Background(), "missing", "x"), ErrNoNotification)
}

func TestRecordResponse(t *testing.T) {
	reg, _ := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)

	got, err := reg.RecordResponse(context.Background(), tk.ID, "reboot it")
	require.NoError(t, err)
	assert.Equal(t, StatusAnswered, got.Status)
	assert.Equal(t, "reboot it", got.Response)
}

func TestRecordResponseNeverRegressesClosed(t *testing.T) {
	reg, _ := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	ctx := context.Background()

	_, err := reg.Close(ctx, tk.ID, ClosedByUser)
	require.NoError(t, err)

	_, err = reg.RecordResponse(ctx, tk.ID, "too late")
	assert.ErrorIs(t, err, ErrTicketClosed)
	got, _ := reg.Get(tk.ID)
	assert.Equal(t, StatusClosed, got.Status)
	assert.Empty(t, got.Response)

	_, err = reg.RecordResponse(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestCloseRemovesNotificationAndCorrelation(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	n, _ := reg.Notification(tk.ID)
	ctx := context.Background()

	closed, err := reg.Close(ctx, tk.ID, ClosedByUser)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	assert.Equal(t, ClosedByUser, closed.ClosedBy)

	_, ok := reg.Owner(tk.ID)
	assert.False(t, ok, "correlation entry should be removed")
	_, ok = reg.Notification(tk.ID)
	assert.False(t, ok, "notification should be removed")
	_, ok = reg.TicketForMessage(n.Ref)
	assert.False(t, ok, "message index should be removed")
	assert.Equal(t, 0, reg.OpenCount())

	last, _ := rec.Last(adminID)
	assert.Equal(t, "Ticket t1 closed by user.", last.Text)
}

func TestCloseTwiceIsSoftError(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := createAndNotify(t, reg)
	ctx := context.Background()

	_, err := reg.Close(ctx, tk.ID, ClosedByOperator)
	require.NoError(t, err)
	before := len(rec.Messages(adminID))

	_, err = reg.Close(ctx, tk.ID, ClosedByUser)
	assert.ErrorIs(t, err, ErrTicketClosed)
	_, err = reg.Close(ctx, "missing", ClosedByUser)
	assert.ErrorIs(t, err, ErrTicketNotFound)

	assert.Len(t, rec.Messages(adminID), before, "soft errors must not message the admin")
	got, _ := reg.Get(tk.ID)
	assert.Equal(t, ClosedByOperator, got.ClosedBy)
}

func TestNotifyAfterCloseIsSkipped(t *testing.T) {
	reg, rec := setupRegistry(t, nil)
	tk := reg.Create(context.Background(), "user-1", "Other", "", "")
	_, err := reg.Close(context.Background(), tk.ID, ClosedByAbandoned)
	require.NoError(t, err)
	rec.Reset()

	assert.ErrorIs(t, reg.NotifyAdmin(context.Background(), tk.ID), ErrTicketNotFound)
	assert.Empty(t, rec.Messages(adminID))
}

func TestCloseRacesOperatorReply(t *testing.T) {
	reg, _ := setupRegistry(t, nil)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		tk := createAndNotify(t, reg)
		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); _, _ = reg.Close(ctx, tk.ID, ClosedByUser) }()
		go func() { defer wg.Done(); _, _ = reg.RecordResponse(ctx, tk.ID, "answer") }()
		go func() { defer wg.Done(); _ = reg.AppendToNotification(ctx, tk.ID, "Updated by operator: answer") }()
		wg.Wait()

		got, _ := reg.Get(tk.ID)
		assert.Equal(t, StatusClosed, got.Status)
		_, ok := reg.Notification(tk.ID)
		assert.False(t, ok)
	}
}

func TestOperatorToggle(t *testing.T) {
	reg, _ := setupRegistry(t, nil)
	assert.False(t, reg.OperatorOnline())
	assert.True(t, reg.ToggleOperatorOnline())
	assert.True(t, reg.OperatorOnline())
	assert.False(t, reg.ToggleOperatorOnline())
	reg.SetOperatorOnline(true)
	assert.True(t, reg.OperatorOnline())
}

func TestListFiltersByStatus(t *testing.T) {
	reg, _ := setupRegistry(t, nil)
	ctx := context.Background()
	a := reg.Create(ctx, "u1", "Other", "", "")
	b := reg.Create(ctx, "u2", "Other", "", "")
	reg.Create(ctx, "u3", "Other", "", "")
	_, _ = reg.RecordResponse(ctx, a.ID, "ok")
	_, _ = reg.Close(ctx, b.ID, ClosedByUser)

	assert.Len(t, reg.List(), 3)
	open := reg.List(StatusUnanswered, StatusAnswered)
	require.Len(t, open, 2)
	assert.Equal(t, a.ID, open[0].ID)
	assert.Len(t, reg.List(StatusClosed), 1)
}

// --- persistence ---

type failingStore struct{}

func (failingStore) Save(context.Context, Ticket) error { return errors.New("disk full") }
func (failingStore) UpdateStatus(context.Context, string, Status, ClosedBy, time.Time) error {
	return errors.New("disk full")
}
func (failingStore) UpdateResponse(context.Context, string, string, time.Time) error {
	return errors.New("disk full")
}

func TestStorageFailureDoesNotAffectState(t *testing.T) {
	reg, _ := setupRegistry(t, failingStore{})
	ctx := context.Background()

	tk := reg.Create(ctx, "user-1", "Other", "", "")
	_, err := reg.RecordResponse(ctx, tk.ID, "answer")
	require.NoError(t, err)
	closed, err := reg.Close(ctx, tk.ID, ClosedByUser)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
}

func TestRegistryPersistsThroughStore(t *testing.T) {
	store := setupStore(t)
	reg, _ := setupRegistry(t, store)
	ctx := context.Background()

	tk := reg.Create(ctx, "user-1", "Speed issue", "slow evenings", "Address: Main St")
	_, err := reg.RecordResponse(ctx, tk.ID, "we fixed the node")
	require.NoError(t, err)

	got, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAnswered, got.Status)
	assert.Equal(t, "we fixed the node", got.Response)
	assert.Equal(t, "Address: Main St", got.Identity)

	_, err = reg.Close(ctx, tk.ID, ClosedByOperator)
	require.NoError(t, err)
	got, err = store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, got.Status)
	assert.Equal(t, ClosedByOperator, got.ClosedBy)
}

func TestStoredUpdatedAtMatchesRegistryClock(t *testing.T) {
	store := setupStore(t)
	clk := clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	reg := NewRegistry(RegistryConfig{
		AdminChatID: adminID,
		Transport:   botstest.New(),
		Store:       store,
		Clock:       clk,
		NewID:       sequentialIDs(),
	})
	ctx := context.Background()

	tk := reg.Create(ctx, "user-1", "Router issue", "", "")
	clk.Advance(time.Hour)
	answered, err := reg.RecordResponse(ctx, tk.ID, "reset it")
	require.NoError(t, err)
	got, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, answered.UpdatedAt.Equal(got.UpdatedAt), "answered: live %v, stored %v", answered.UpdatedAt, got.UpdatedAt)

	clk.Advance(time.Hour)
	closed, err := reg.Close(ctx, tk.ID, ClosedByUser)
	require.NoError(t, err)
	got, err = store.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, closed.UpdatedAt.Equal(got.UpdatedAt), "closed: live %v, stored %v", closed.UpdatedAt, got.UpdatedAt)
	assert.True(t, got.CreatedAt.Equal(tk.CreatedAt))
}

func TestStoreNeverReopensClosed(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	tk := Ticket{ID: "s1", SessionID: "u", ProblemType: "Other", Status: StatusUnanswered}
	if err := store.Save(ctx, tk); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.UpdateStatus(ctx, "s1", StatusClosed, ClosedByUser, time.Now()); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := store.UpdateResponse(ctx, "s1", "late", time.Now()); err != nil {
		t.Fatalf("UpdateResponse: %v", err)
	}
	if err := store.UpdateStatus(ctx, "s1", StatusAnswered, "", time.Now()); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusClosed {
		t.Errorf("Status = %q, want %q", got.Status, StatusClosed)
	}
	if got.ClosedBy != ClosedByUser {
		t.Errorf("ClosedBy = %q, want %q", got.ClosedBy, ClosedByUser)
	}
}

func TestStoreListAndNotFound(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i, st := range []Status{StatusUnanswered, StatusAnswered, StatusClosed} {
		if err := store.Save(ctx, Ticket{ID: fmt.Sprintf("s%d", i), SessionID: "u", ProblemType: "Other", Status: st}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d tickets, want 3", len(all))
	}
	open, err := store.List(ctx, StatusUnanswered, StatusAnswered)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("List(open) returned %d tickets, want 2", len(open))
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrTicketNotFound", err)
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Registry, *Store) {
	t.Helper()
	store := setupStore(t)
	reg, _ := setupRegistry(t, store)
	r := chi.NewRouter()
	RegisterRoutes(r, reg, store)
	return r, reg, store
}

func TestHTTPListAndGet(t *testing.T) {
	r, reg, _ := setupRouter(t)
	tk := createAndNotify(t, reg)

	req := httptest.NewRequest(http.MethodGet, "/api/tickets?status=unanswered", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []Ticket
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, tk.ID, list[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/tickets/"+tk.ID, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		ID           string        `json:"id"`
		Notification *Notification `json:"notification"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, tk.ID, view.ID)
	require.NotNil(t, view.Notification)
}

func TestHTTPGetFallsBackToStore(t *testing.T) {
	r, _, store := setupRouter(t)
	require.NoError(t, store.Save(context.Background(), Ticket{ID: "old", SessionID: "u", ProblemType: "Other", Status: StatusClosed}))

	req := httptest.NewRequest(http.MethodGet, "/api/tickets/old", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tickets/missing", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPOperatorStatus(t *testing.T) {
	r, reg, _ := setupRouter(t)
	reg.SetOperatorOnline(true)
	reg.Create(context.Background(), "u", "Other", "", "")

	req := httptest.NewRequest(http.MethodGet, "/api/operator", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got operatorStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Online)
	assert.Equal(t, 1, got.OpenTickets)
}
