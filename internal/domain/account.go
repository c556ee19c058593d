package domain

import (
	"fmt"
	"strings"
)

// Role selects which periodic synchronization protocols a banker instance
// runs. The string values are the wire-level account type tags understood by
// the remote ledger.
type Role string

const (
	// RoleRouter marks a bid-router instance; it runs the reauthorize protocol.
	RoleRouter Role = "Router"
	// RolePostAuction marks a post-auction instance; it runs the spend-update
	// protocol.
	RolePostAuction Role = "PostAuction"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleRouter || r == RolePostAuction
}

// KeySeparator joins the path segments of an AccountKey.
const KeySeparator = ":"

// AccountKey is a hierarchical budget account identifier: an ordered sequence
// of non-empty path segments rendered as a colon-joined string. A trailing
// per-instance suffix distinguishes replicas of the same logical budget owned
// by different local caches.
type AccountKey string

// ParseAccountKey validates that s is a well-formed key (at least one
// segment, no empty segments).
func ParseAccountKey(s string) (AccountKey, error) {
	if s == "" {
		return "", fmt.Errorf("account key is empty: %w", ErrInvalidKey)
	}
	for _, seg := range strings.Split(s, KeySeparator) {
		if seg == "" {
			return "", fmt.Errorf("account key %q has an empty segment: %w", s, ErrInvalidKey)
		}
	}
	return AccountKey(s), nil
}

// NewAccountKey builds a key from individual segments.
func NewAccountKey(segments ...string) (AccountKey, error) {
	return ParseAccountKey(strings.Join(segments, KeySeparator))
}

// String renders the colon-joined form.
func (k AccountKey) String() string { return string(k) }

// Segments returns the ordered path segments.
func (k AccountKey) Segments() []string {
	return strings.Split(string(k), KeySeparator)
}

// HasSuffix reports whether the key's last segment equals suffix.
func (k AccountKey) HasSuffix(suffix string) bool {
	segs := k.Segments()
	return len(segs) > 0 && segs[len(segs)-1] == suffix
}

// WithSuffix appends the per-instance suffix as a final segment, unless the
// key already carries it. An empty suffix leaves the key unchanged.
func (k AccountKey) WithSuffix(suffix string) AccountKey {
	if suffix == "" || k.HasSuffix(suffix) {
		return k
	}
	return AccountKey(string(k) + KeySeparator + suffix)
}

// AccountRecord is the canonical wire representation of one account as the
// remote ledger serves it. All monetary fields are integer micro-units.
type AccountRecord struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
	Rate    int64  `json:"rate"`
}

// Valid reports whether the record carries its required fields.
func (r AccountRecord) Valid() bool { return r.Name != "" }

// SpendSnapshot is one account's entry in a spend-update request body.
type SpendSnapshot struct {
	Name    string `json:"name"`
	Spend   int64  `json:"spend"`
	Balance int64  `json:"balance"`
	Rate    int64  `json:"rate"`
}
