package customers

import (
	"context"
	"testing"

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

func TestIdentityKindAndDisplay(t *testing.T) {
	tests := []struct {
		id      Identity
		kind    IdentityKind
		display string
	}{
		{ContractIdentity(" A-100 "), KindContract, "Contract number: A-100"},
		{AddressIdentity("12 Main St"), KindAddress, "Address: 12 Main St"},
		{Identity{}, KindNone, "Unidentified"},
	}
	for _, tt := range tests {
		if got := tt.id.Kind(); got != tt.kind {
			t.Errorf("Kind() = %q, want %q", got, tt.kind)
		}
		if got := tt.id.Display(); got != tt.display {
			t.Errorf("Display() = %q, want %q", got, tt.display)
		}
	}
}

func TestExistsAndSave(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := ContractIdentity("A-100")

	exists, err := store.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("A-100 should not exist yet")
	}

	if err := store.Save(ctx, "chat-1", id); err != nil {
		t.Fatalf("Save: %v", err)
	}

	exists, err = store.Exists(ctx, id)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("A-100 should exist after Save")
	}

	exists, err = store.Exists(ctx, AddressIdentity("A-100"))
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("contract number must not match the address column")
	}
}

func TestSaveReplacesIdentity(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "chat-1", ContractIdentity("A-100")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "chat-1", AddressIdentity("12 Main St")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ContractNumber != "" || got.Address != "12 Main St" {
		t.Errorf("Get() = %+v, want address only", got)
	}
}

func TestRejectsEmptyIdentity(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "chat-1", Identity{}); err == nil {
		t.Error("expected error saving empty identity")
	}
	if _, err := store.Exists(ctx, Identity{}); err == nil {
		t.Error("expected error checking empty identity")
	}
}
