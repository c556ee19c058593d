package localbanker

import "github.com/bidstream-io/localbanker/internal/domain"

// Amount is a fixed-point monetary value in micro-units of currency.
type Amount = domain.Amount

// MicroUSD constructs an Amount from a count of micro-dollars.
func MicroUSD(v int64) Amount { return domain.MicroUSD(v) }

// AccountKey is a hierarchical, colon-joined budget account identifier.
type AccountKey = domain.AccountKey

// ParseAccountKey validates and builds an AccountKey from its string form.
func ParseAccountKey(s string) (AccountKey, error) { return domain.ParseAccountKey(s) }

// NewAccountKey builds an AccountKey from individual path segments.
func NewAccountKey(segments ...string) (AccountKey, error) {
	return domain.NewAccountKey(segments...)
}

// Role selects which synchronization protocols a banker instance runs.
type Role = domain.Role

// Roles understood by the remote ledger.
const (
	RoleRouter      = domain.RoleRouter
	RolePostAuction = domain.RolePostAuction
)

// Sentinel errors surfaced by the public API.
var (
	ErrAccountNotFound = domain.ErrAccountNotFound
	ErrInvalidKey      = domain.ErrInvalidKey
)
