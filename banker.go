package localbanker

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bidstream-io/localbanker/internal/domain"
	"github.com/bidstream-io/localbanker/internal/engine"
	"github.com/bidstream-io/localbanker/internal/journal"
	"github.com/bidstream-io/localbanker/internal/ledger"
	"github.com/bidstream-io/localbanker/internal/metrics"
	"github.com/bidstream-io/localbanker/internal/store"
)

// defaultSpendRate is the process-wide spend-rate limit applied to accounts
// without an explicit rate, in micro-units.
const defaultSpendRate = domain.Amount(100000)

// defaultJournalTTL bounds how long an idle account's spend journal counter
// survives.
const defaultJournalTTL = 48 * time.Hour

// Banker is the client-side budget cache: a local, in-memory replica of
// per-account budget authorizations that admits or denies spend decisions
// without a network round-trip, while the synchronization engine reconciles
// it against the remote ledger in the background.
type Banker struct {
	store  *store.Store
	engine *engine.Engine
	met    *metrics.Metrics
	log    *zap.Logger

	suffix string
	debug  bool

	journalStore *journal.RedisStore
}

// AccountInfo is a read-only copy of one account's local state.
type AccountInfo struct {
	Key     AccountKey `json:"name"`
	Balance Amount     `json:"balance"`
	Spend   Amount     `json:"spend"`
	Rate    Amount     `json:"rate"`
}

// New creates a Banker talking to the ledger at ledgerURL. role selects the
// active synchronization protocols and accountSuffix identifies this replica
// (it is appended to every account key this instance touches).
func New(ledgerURL string, role Role, accountSuffix string, opts ...Option) (*Banker, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("localbanker: unknown role %q", role)
	}
	if accountSuffix == "" {
		return nil, errors.New("localbanker: account suffix is required")
	}
	if _, err := domain.ParseAccountKey(accountSuffix); err != nil {
		return nil, fmt.Errorf("localbanker: invalid account suffix: %w", err)
	}

	cfg := &bankerConfig{
		spendRate:  defaultSpendRate,
		journalTTL: defaultJournalTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	client, err := ledger.New(ledger.Config{
		BaseURL:        ledgerURL,
		Timeout:        cfg.timeout,
		MaxConnections: cfg.maxConnections,
	})
	if err != nil {
		return nil, err
	}

	met, err := metrics.New(cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	st := store.New(cfg.spendRate)

	// Pass a nil interface (not a typed nil pointer) when the journal is
	// not configured.
	var jnl engine.SpendJournal
	var jstore *journal.RedisStore
	if len(cfg.journalAddrs) > 0 {
		jstore, err = journal.NewRedisStore(journal.RedisConfig{
			Addrs:    cfg.journalAddrs,
			Password: cfg.journalPassword,
		})
		if err != nil {
			return nil, err
		}
		jnl = journal.New(jstore, cfg.journalTTL)
	}

	eng := engine.New(engine.Config{
		Store:               st,
		Ledger:              client,
		Journal:             jnl,
		Metrics:             met,
		Logger:              log,
		Role:                role,
		AccountSuffix:       accountSuffix,
		Debug:               cfg.debug,
		ReauthorizeInterval: cfg.reauthorizeInterval,
		SpendUpdateInterval: cfg.spendUpdateInterval,
		RegisterInterval:    cfg.registerInterval,
	})

	return &Banker{
		store:        st,
		engine:       eng,
		met:          met,
		log:          log,
		suffix:       accountSuffix,
		debug:        cfg.debug,
		journalStore: jstore,
	}, nil
}

// Start launches the periodic synchronization protocols for the instance's
// role.
func (b *Banker) Start() {
	b.engine.Start()
}

// Shutdown stops the synchronization engine and releases resources. Blocking
// is bounded by the ledger request timeout.
func (b *Banker) Shutdown() {
	b.engine.Stop()
	if b.journalStore != nil {
		b.journalStore.Close()
	}
}

// AddAccount registers an account for budgeting. Registration is
// asynchronous and eventually consistent: Bid denies for the account until
// the remote ledger confirms it.
func (b *Banker) AddAccount(key AccountKey) {
	b.engine.AddAccount(key.WithSuffix(b.suffix))
}

// Bid attempts to reserve price against the account's local balance. It
// performs no I/O and never waits on synchronization activity beyond the
// store mutex. A false return is a normal outcome, not a fault: either the
// account is unknown (fail closed) or the balance cannot cover the price.
func (b *Banker) Bid(key AccountKey, price Amount) bool {
	full := key.WithSuffix(b.suffix)
	admitted := b.store.Bid(full, price)

	if admitted {
		b.met.Bids.WithLabelValues("admitted").Inc()
	} else {
		b.met.Bids.WithLabelValues("denied").Inc()
	}
	if b.debug {
		b.log.Debug("bid",
			zap.String("account", full.String()),
			zap.Int64("price", price.Micros()),
			zap.Bool("admitted", admitted),
		)
	}
	return admitted
}

// Win reconciles an auction's actual clearing price against the reservation
// made by a prior admitted Bid. Returns false when the account is unknown.
func (b *Banker) Win(key AccountKey, winPrice Amount) bool {
	full := key.WithSuffix(b.suffix)
	accounted := b.store.Win(full, winPrice)

	if accounted {
		b.met.Wins.WithLabelValues("accounted").Inc()
	} else {
		b.met.Wins.WithLabelValues("unknown_account").Inc()
	}
	if b.debug {
		b.log.Debug("win",
			zap.String("account", full.String()),
			zap.Int64("win_price", winPrice.Micros()),
			zap.Bool("accounted", accounted),
		)
	}
	return accounted
}

// Balance returns the account's currently available local balance.
func (b *Banker) Balance(key AccountKey) (Amount, error) {
	return b.store.Balance(key.WithSuffix(b.suffix))
}

// Account returns a copy of one account's local state.
func (b *Banker) Account(key AccountKey) (AccountInfo, error) {
	full := key.WithSuffix(b.suffix)
	acc, ok := b.store.Get(full)
	if !ok {
		return AccountInfo{}, domain.ErrAccountNotFound
	}
	return AccountInfo{Key: full, Balance: acc.Balance, Spend: acc.Spend, Rate: acc.Rate}, nil
}

// Accounts returns a copy of every account's local state.
func (b *Banker) Accounts() []AccountInfo {
	snap := b.store.Snapshot()
	out := make([]AccountInfo, 0, len(snap))
	for key, acc := range snap {
		out = append(out, AccountInfo{Key: key, Balance: acc.Balance, Spend: acc.Spend, Rate: acc.Rate})
	}
	return out
}

// SetSpendRate replaces the process-wide default spend-rate limit.
func (b *Banker) SetSpendRate(rate Amount) {
	b.store.SetDefaultSpendRate(rate)
}
