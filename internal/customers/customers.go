// Package customers persists end-user identities.
package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ziadkadry99/supportbot/internal/db"
)

// IdentityKind tells which identifier a customer supplied.
type IdentityKind string

const (
	KindNone     IdentityKind = ""
	KindContract IdentityKind = "contract"
	KindAddress  IdentityKind = "address"
)

// Identity holds exactly one of ContractNumber or Address once set.
type Identity struct {
	ContractNumber string `json:"contract_number,omitempty"`
	Address        string `json:"address,omitempty"`
}

// ContractIdentity returns an identity bound to a contract number.
func ContractIdentity(number string) Identity {
	return Identity{ContractNumber: strings.TrimSpace(number)}
}

// AddressIdentity returns an identity bound to an address.
func AddressIdentity(address string) Identity {
	return Identity{Address: strings.TrimSpace(address)}
}

// Kind reports which field is set.
func (i Identity) Kind() IdentityKind {
	switch {
	case i.ContractNumber != "":
		return KindContract
	case i.Address != "":
		return KindAddress
	default:
		return KindNone
	}
}

// Display renders the identity for the administrative notification.
func (i Identity) Display() string {
	switch i.Kind() {
	case KindContract:
		return "Contract number: " + i.ContractNumber
	case KindAddress:
		return "Address: " + i.Address
	default:
		return "Unidentified"
	}
}

// Store is the identity half of the storage collaborator.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Exists reports whether any customer has already registered this identity.
func (s *Store) Exists(ctx context.Context, id Identity) (bool, error) {
	var query, value string
	switch id.Kind() {
	case KindContract:
		query, value = "SELECT 1 FROM customers WHERE contract_number = ? LIMIT 1", id.ContractNumber
	case KindAddress:
		query, value = "SELECT 1 FROM customers WHERE address = ? LIMIT 1", id.Address
	default:
		return false, fmt.Errorf("checking identity: empty identity")
	}

	var one int
	err := s.db.QueryRowContext(ctx, query, value).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking identity: %w", err)
	}
	return true, nil
}

// Save records the identity for a session, replacing any earlier one.
func (s *Store) Save(ctx context.Context, sessionID string, id Identity) error {
	if id.Kind() == KindNone {
		return fmt.Errorf("saving identity for %s: empty identity", sessionID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (session_id, contract_number, address)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			contract_number = excluded.contract_number,
			address = excluded.address`,
		sessionID, nullable(id.ContractNumber), nullable(id.Address),
	)
	if err != nil {
		return fmt.Errorf("saving identity for %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the identity saved for a session.
func (s *Store) Get(ctx context.Context, sessionID string) (Identity, error) {
	var contract, address sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT contract_number, address FROM customers WHERE session_id = ?", sessionID,
	).Scan(&contract, &address)
	if err != nil {
		return Identity{}, fmt.Errorf("loading identity for %s: %w", sessionID, err)
	}
	return Identity{ContractNumber: contract.String, Address: address.String}, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
