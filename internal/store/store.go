// Package store holds the authoritative local view of per-account budget
// state. Every operation is atomic under one mutex and performs no I/O, so
// the bid/win hot path never waits on anything but the lock itself.
package store

import (
	"sync"

	"github.com/bidstream-io/localbanker/internal/domain"
)

// Account is one entity's local budget state.
type Account struct {
	// Balance is the currently available authorization: decremented by
	// admitted bids, replaced wholesale by reauthorization.
	Balance domain.Amount
	// Spend is the spend accumulated locally since it was last reported
	// to the remote ledger.
	Spend domain.Amount
	// Rate is the per-account spend-rate limit; zero means "use the
	// store-wide default".
	Rate domain.Amount

	// reservations is a FIFO of admitted bid prices awaiting their win
	// reconciliation.
	reservations []domain.Amount
}

// Store maps account keys to budget records. It also owns the
// pending-registration set so both structures share a single mutex and there
// is no lock-ordering hazard between them.
type Store struct {
	mu          sync.Mutex
	accounts    map[domain.AccountKey]*Account
	pending     map[domain.AccountKey]struct{}
	defaultRate domain.Amount
}

// New creates an empty store with the given default spend rate.
func New(defaultRate domain.Amount) *Store {
	return &Store{
		accounts:    make(map[domain.AccountKey]*Account),
		pending:     make(map[domain.AccountKey]struct{}),
		defaultRate: defaultRate,
	}
}

// Bid attempts to reserve price against the account's balance. Unknown
// accounts fail closed. Admission requires the debit not to drive the
// balance below zero; on admission the price moves into accumulated spend
// and is queued as a reservation for later win reconciliation.
func (s *Store) Bid(key domain.AccountKey, price domain.Amount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		return false
	}
	if acc.Balance.Sub(price).IsNegative() {
		return false
	}
	acc.Balance = acc.Balance.Sub(price)
	acc.Spend = acc.Spend.Add(price)
	acc.reservations = append(acc.reservations, price)
	return true
}

// Win reconciles the actual clearing price against the oldest outstanding
// reservation. The reserved amount was already debited at bid time; this
// corrects the estimate to the true price. It is a correction, not an
// admission decision, so funds sufficiency is not re-checked and the balance
// may transiently go negative. A win with no outstanding reservation is
// applied as uncovered spend (reserved estimate of zero), which drifts the
// balance down.
func (s *Store) Win(key domain.AccountKey, winPrice domain.Amount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		return false
	}
	var reserved domain.Amount
	if len(acc.reservations) > 0 {
		reserved = acc.reservations[0]
		acc.reservations = acc.reservations[1:]
	}
	delta := reserved.Sub(winPrice)
	acc.Balance = acc.Balance.Add(delta)
	acc.Spend = acc.Spend.Sub(delta)
	return true
}

// AccumulateBalance replaces the account's balance with a fresh value from
// the remote ledger (full replacement, not addition) and returns
// newBalance - previousBalance for telemetry. Unknown keys are created with
// the new balance and zero accumulated spend.
func (s *Store) AccumulateBalance(key domain.AccountKey, newBalance domain.Amount) domain.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		s.accounts[key] = &Account{Balance: newBalance}
		return newBalance
	}
	delta := newBalance.Sub(acc.Balance)
	acc.Balance = newBalance
	return delta
}

// SettleSpend subtracts a reported amount from the account's accumulated
// spend, after the remote ledger acknowledged it. Spend that arrived while
// the report was in flight stays accumulated.
func (s *Store) SettleSpend(key domain.AccountKey, reported domain.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.accounts[key]; ok {
		acc.Spend = acc.Spend.Sub(reported)
	}
}

// Get copies out one account's state.
func (s *Store) Get(key domain.AccountKey) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		return Account{}, false
	}
	return Account{Balance: acc.Balance, Spend: acc.Spend, Rate: acc.Rate}, true
}

// Exists reports whether the key is present.
func (s *Store) Exists(key domain.AccountKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[key]
	return ok
}

// Balance returns the account's available balance.
func (s *Store) Balance(key domain.AccountKey) (domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return acc.Balance, nil
}

// Rate returns the account's effective spend rate (the store default when
// the account has none of its own).
func (s *Store) Rate(key domain.AccountKey) (domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	if acc.Rate == 0 {
		return s.defaultRate, nil
	}
	return acc.Rate, nil
}

// AddFromRecord inserts an account from its canonical wire representation if
// it is not already present. Returns false for malformed records.
func (s *Store) AddFromRecord(rec domain.AccountRecord) bool {
	if !rec.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.AccountKey(rec.Name)
	if _, ok := s.accounts[key]; ok {
		return true
	}
	s.accounts[key] = &Account{
		Balance: domain.MicroUSD(rec.Balance),
		Rate:    domain.MicroUSD(rec.Rate),
	}
	return true
}

// ReplaceFromRecord unconditionally overwrites the local record with the
// canonical state, discarding accumulated spend and outstanding
// reservations. Returns false for malformed records.
func (s *Store) ReplaceFromRecord(rec domain.AccountRecord) bool {
	if !rec.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[domain.AccountKey(rec.Name)] = &Account{
		Balance: domain.MicroUSD(rec.Balance),
		Rate:    domain.MicroUSD(rec.Rate),
	}
	return true
}

// SetDefaultSpendRate replaces the store-wide default spend rate applied to
// accounts without an explicit rate of their own.
func (s *Store) SetDefaultSpendRate(rate domain.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultRate = rate
}

// DefaultSpendRate returns the store-wide default spend rate.
func (s *Store) DefaultSpendRate() domain.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultRate
}

// Len returns the number of known accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// KeyStrings snapshots all known account names for a reauthorize request
// body. Order follows map iteration and carries no meaning.
func (s *Store) KeyStrings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.accounts))
	for key := range s.accounts {
		names = append(names, key.String())
	}
	return names
}

// SpendSnapshots copies out one spend snapshot per account for a
// spend-update request body, so serialization and I/O happen outside the
// lock.
func (s *Store) SpendSnapshots() []domain.SpendSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]domain.SpendSnapshot, 0, len(s.accounts))
	for key, acc := range s.accounts {
		rate := acc.Rate
		if rate == 0 {
			rate = s.defaultRate
		}
		snaps = append(snaps, domain.SpendSnapshot{
			Name:    key.String(),
			Spend:   acc.Spend.Micros(),
			Balance: acc.Balance.Micros(),
			Rate:    rate.Micros(),
		})
	}
	return snaps
}

// Snapshot copies out every account's current state for reporting.
func (s *Store) Snapshot() map[domain.AccountKey]Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.AccountKey]Account, len(s.accounts))
	for key, acc := range s.accounts {
		out[key] = Account{Balance: acc.Balance, Spend: acc.Spend, Rate: acc.Rate}
	}
	return out
}

// AddPending marks a key as requested but not yet confirmed by the remote
// ledger.
func (s *Store) AddPending(key domain.AccountKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = struct{}{}
}

// RemovePending drops a key from the pending-registration set.
func (s *Store) RemovePending(key domain.AccountKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
}

// SwapPending atomically replaces the pending set with an empty one and
// returns the previous contents. Registrations arriving during a sweep land
// in the fresh set and are untouched.
func (s *Store) SwapPending() []domain.AccountKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]domain.AccountKey, 0, len(s.pending))
	for key := range s.pending {
		keys = append(keys, key)
	}
	s.pending = make(map[domain.AccountKey]struct{})
	return keys
}

// PendingLen returns the size of the pending-registration set.
func (s *Store) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
