package domain

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// AccountID is an opaque 128-bit account identifier.
type AccountID uuid.UUID

func NewAccountID() AccountID { return AccountID(uuid.New()) }

func ParseAccountID(s string) (AccountID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("domain: invalid account id %q: %w", s, err)
	}
	return AccountID(id), nil
}

func (a AccountID) String() string { return uuid.UUID(a).String() }
func (a AccountID) IsZero() bool   { return uuid.UUID(a) == uuid.Nil }

func (a AccountID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AccountID) UnmarshalText(b []byte) error {
	id, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

func (a AccountID) Value() (driver.Value, error) { return uuid.UUID(a).String(), nil }

func (a *AccountID) Scan(src any) error {
	id, err := scanUUID(src)
	if err != nil {
		return err
	}
	*a = AccountID(id)
	return nil
}

// IdempotencyKey is a caller-supplied (or engine-generated) opaque 128-bit
// value guaranteeing at-most-once application of a write operation.
type IdempotencyKey uuid.UUID

func NewIdempotencyKey() IdempotencyKey { return IdempotencyKey(uuid.New()) }

func ParseIdempotencyKey(s string) (IdempotencyKey, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return IdempotencyKey{}, fmt.Errorf("domain: invalid idempotency key %q: %w", s, err)
	}
	return IdempotencyKey(id), nil
}

func (k IdempotencyKey) String() string { return uuid.UUID(k).String() }
func (k IdempotencyKey) IsZero() bool   { return uuid.UUID(k) == uuid.Nil }

func (k IdempotencyKey) Value() (driver.Value, error) { return uuid.UUID(k).String(), nil }

func (k *IdempotencyKey) Scan(src any) error {
	id, err := scanUUID(src)
	if err != nil {
		return err
	}
	*k = IdempotencyKey(id)
	return nil
}

func scanUUID(src any) (uuid.UUID, error) {
	switch v := src.(type) {
	case string:
		return uuid.Parse(v)
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		return uuid.ParseBytes(v)
	default:
		return uuid.UUID{}, fmt.Errorf("domain: cannot scan %T into uuid", src)
	}
}

// TxID is an event's content hash (§4.2): SHA-256 of its canonical
// serialization. It is the event's primary identity.
type TxID [sha256.Size]byte

func ParseTxID(s string) (TxID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != sha256.Size {
		return TxID{}, fmt.Errorf("domain: invalid tx id %q", s)
	}
	var id TxID
	copy(id[:], b)
	return id, nil
}

func (t TxID) String() string { return hex.EncodeToString(t[:]) }
func (t TxID) IsZero() bool   { return t == TxID{} }

func (t TxID) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TxID) UnmarshalText(b []byte) error {
	id, err := ParseTxID(string(b))
	if err != nil {
		return err
	}
	*t = id
	return nil
}

func (t TxID) Value() (driver.Value, error) { return t[:], nil }

func (t *TxID) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok || len(b) != sha256.Size {
		return fmt.Errorf("domain: cannot scan %v into tx id", src)
	}
	copy(t[:], b)
	return nil
}
