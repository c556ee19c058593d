// Package engine drives the periodic synchronization protocols that keep the
// local budget cache consistent with the remote ledger: reauthorization
// (router role), spend updates (post-auction role) and lazy account
// registration (both roles). Each protocol runs on its own ticker, issues
// requests from short-lived goroutines so the tickers never block on the
// network, and is overlap-guarded by a flight guard.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bidstream-io/localbanker/internal/domain"
	"github.com/bidstream-io/localbanker/internal/ledger"
	"github.com/bidstream-io/localbanker/internal/metrics"
	"github.com/bidstream-io/localbanker/internal/store"
)

// Default protocol intervals.
const (
	DefaultReauthorizeInterval = time.Second
	DefaultSpendUpdateInterval = 500 * time.Millisecond
	DefaultRegisterInterval    = time.Second
)

// skipThreshold is the number of consecutive skipped ticks a protocol
// tolerates before forcing a retry past its in-flight request.
const skipThreshold = 3

// Spend-update statuses that do not signal a desync.
const (
	statusSuccess = "success"
	statusNoNeed  = "no need"
)

// Ledger is the consumer interface for the remote ledger client.
type Ledger interface {
	CreateAccount(ctx context.Context, name string, role domain.Role) (domain.AccountRecord, error)
	Account(ctx context.Context, name string) (domain.AccountRecord, error)
	Reauthorize(ctx context.Context, names []string) ([]domain.AccountRecord, error)
	SpendUpdate(ctx context.Context, snaps []domain.SpendSnapshot) (map[string]string, error)
	SetRate(ctx context.Context, name string, rate domain.Amount) error
}

// SpendJournal persists settled spend counters for operational visibility.
// Implementations must never be called on the hot path.
type SpendJournal interface {
	RecordSpend(ctx context.Context, account string, micros int64) error
}

// Config wires an Engine.
type Config struct {
	Store  *store.Store
	Ledger Ledger
	// Journal is optional; nil disables spend journaling.
	Journal SpendJournal
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	Role          domain.Role
	AccountSuffix string
	// Debug enables per-account debug logging on protocol outcomes.
	Debug bool

	ReauthorizeInterval time.Duration
	SpendUpdateInterval time.Duration
	RegisterInterval    time.Duration
}

// Engine runs the synchronization protocols against the remote ledger.
type Engine struct {
	store   *store.Store
	ledger  Ledger
	journal SpendJournal
	met     *metrics.Metrics
	log     *zap.Logger

	role   domain.Role
	suffix string
	debug  bool

	reauthInterval   time.Duration
	spendInterval    time.Duration
	registerInterval time.Duration

	reauthGuard *flightGuard
	spendGuard  *flightGuard

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates an Engine. The engine holds a non-owning reference to the
// store; the store must outlive it.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Metrics == nil {
		// Unregistered collectors; metrics.New only fails on registration.
		cfg.Metrics, _ = metrics.New(nil)
	}
	if cfg.ReauthorizeInterval <= 0 {
		cfg.ReauthorizeInterval = DefaultReauthorizeInterval
	}
	if cfg.SpendUpdateInterval <= 0 {
		cfg.SpendUpdateInterval = DefaultSpendUpdateInterval
	}
	if cfg.RegisterInterval <= 0 {
		cfg.RegisterInterval = DefaultRegisterInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:            cfg.Store,
		ledger:           cfg.Ledger,
		journal:          cfg.Journal,
		met:              cfg.Metrics,
		log:              log,
		role:             cfg.Role,
		suffix:           cfg.AccountSuffix,
		debug:            cfg.Debug,
		reauthInterval:   cfg.ReauthorizeInterval,
		spendInterval:    cfg.SpendUpdateInterval,
		registerInterval: cfg.RegisterInterval,
		reauthGuard:      newFlightGuard(skipThreshold),
		spendGuard:       newFlightGuard(skipThreshold),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start launches the periodic protocols enabled for the instance's role.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		if e.role == domain.RoleRouter {
			e.spawnLoop(e.reauthInterval, e.reauthorizeTick)
		}
		if e.role == domain.RolePostAuction {
			e.spawnLoop(e.spendInterval, e.spendUpdateTick)
		}
		e.spawnLoop(e.registerInterval, e.sweepTick)
		e.log.Info("synchronization engine started",
			zap.String("role", string(e.role)),
			zap.String("account_suffix", e.suffix),
		)
	})
}

// Stop cancels the protocols and waits for outstanding request goroutines.
// Blocking is bounded by the ledger client's request timeout.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
		e.log.Info("synchronization engine stopped")
	})
}

// AddAccount registers a fully-qualified account key with the remote ledger.
// The call is asynchronous and idempotent: an already-known key is dropped
// from the pending set, everything else stays pending until a registration
// response confirms it.
func (e *Engine) AddAccount(key domain.AccountKey) {
	if e.store.Exists(key) {
		e.store.RemovePending(key)
		return
	}
	e.store.AddPending(key)
	e.registerAccount(key)
}

func (e *Engine) spawnLoop(interval time.Duration, tick func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
}

// reauthorizeTick pulls fresh balances for every known account into the
// store and pushes the locally configured spend rate wherever the remote
// reports a higher one.
func (e *Engine) reauthorizeTick() {
	switch e.reauthGuard.Tick() {
	case tickSkipped:
		e.met.SyncSkipped.WithLabelValues(metrics.ProtocolReauthorize).Inc()
		e.log.Debug("reauthorize tick skipped, request still in flight",
			zap.Int("skipped", e.reauthGuard.SkippedCount()))
		return
	case tickForcedRetry:
		e.met.SyncForcedRetries.WithLabelValues(metrics.ProtocolReauthorize).Inc()
		e.log.Warn("reauthorize forcing retry past an in-flight request")
	case tickAcquired:
	}

	names := e.store.KeyStrings()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.reauthGuard.Release()

		start := time.Now()
		recs, err := e.ledger.Reauthorize(e.ctx, names)
		e.observe(metrics.ProtocolReauthorize, start, err)
		if err != nil {
			return
		}
		for _, rec := range recs {
			if !rec.Valid() {
				e.met.SyncRequests.WithLabelValues(metrics.ProtocolReauthorize, metrics.StatusParseError).Inc()
				e.log.Warn("reauthorize response contains a record without a name")
				continue
			}
			key := e.localKey(rec.Name)
			spent := e.store.AccumulateBalance(key, domain.MicroUSD(rec.Balance))
			if e.debug {
				e.log.Debug("account reauthorized",
					zap.String("account", key.String()),
					zap.Int64("balance", rec.Balance),
					zap.Int64("spent_since_last", spent.Micros()),
				)
			}
			if domain.MicroUSD(rec.Rate) > e.store.DefaultSpendRate() {
				e.pushRate(rec.Name)
			}
		}
	}()
}

// spendUpdateTick reports accumulated local spend to the ledger and repairs
// any account the ledger flags as out of sync.
func (e *Engine) spendUpdateTick() {
	switch e.spendGuard.Tick() {
	case tickSkipped:
		e.met.SyncSkipped.WithLabelValues(metrics.ProtocolSpendUpdate).Inc()
		e.log.Debug("spend update tick skipped, request still in flight",
			zap.Int("skipped", e.spendGuard.SkippedCount()))
		return
	case tickForcedRetry:
		e.met.SyncForcedRetries.WithLabelValues(metrics.ProtocolSpendUpdate).Inc()
		e.log.Warn("spend update forcing retry past an in-flight request")
	case tickAcquired:
	}

	snaps := e.store.SpendSnapshots()
	reported := make(map[string]int64, len(snaps))
	for _, snap := range snaps {
		reported[snap.Name] = snap.Spend
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.spendGuard.Release()

		start := time.Now()
		statuses, err := e.ledger.SpendUpdate(e.ctx, snaps)
		e.observe(metrics.ProtocolSpendUpdate, start, err)
		if err != nil {
			return
		}
		for name, status := range statuses {
			switch status {
			case statusSuccess:
				spent := reported[name]
				e.store.SettleSpend(e.localKey(name), domain.MicroUSD(spent))
				if spent != 0 {
					e.journalSpend(name, spent)
				}
			case statusNoNeed:
			default:
				e.log.Warn("account out of sync, reloading canonical state",
					zap.String("account", name),
					zap.String("status", status),
				)
				e.replaceAccount(name)
			}
		}
	}()
}

// sweepTick retries registration for accounts the ledger has not confirmed
// yet and refreshes the size gauges.
func (e *Engine) sweepTick() {
	keys := e.store.SwapPending()
	e.met.Accounts.Set(float64(e.store.Len()))
	e.met.PendingAccounts.Set(float64(len(keys)))

	for _, key := range keys {
		if e.store.Exists(key) {
			continue
		}
		e.registerAccount(key)
	}
}

// registerAccount asynchronously registers one account. On failure the key
// returns to the pending set and the next sweep retries it; registration has
// no other retry mechanism.
func (e *Engine) registerAccount(key domain.AccountKey) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		start := time.Now()
		rec, err := e.ledger.CreateAccount(e.ctx, key.String(), e.role)
		e.observe(metrics.ProtocolRegister, start, err)
		if err != nil {
			e.store.AddPending(key)
			return
		}
		rec.Name = e.localKey(rec.Name).String()
		if !e.store.AddFromRecord(rec) {
			e.log.Warn("registration response dropped, record malformed",
				zap.String("account", key.String()))
			e.store.AddPending(key)
			return
		}
		e.store.RemovePending(key)
		if e.debug {
			e.log.Debug("account registered",
				zap.String("account", key.String()),
				zap.Int64("balance", rec.Balance),
			)
		}
	}()
}

// replaceAccount fetches one account's canonical state and overwrites the
// local record. On failure the stale record stays in place until the next
// spend-update cycle observes the same desync status.
func (e *Engine) replaceAccount(name string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		start := time.Now()
		rec, err := e.ledger.Account(e.ctx, name)
		e.observe(metrics.ProtocolReplace, start, err)
		if err != nil {
			return
		}
		rec.Name = e.localKey(rec.Name).String()
		e.store.ReplaceFromRecord(rec)
	}()
}

// pushRate fire-and-forgets the locally configured spend rate for one
// account. Failure is recorded, not retried; the next reauthorize cycle
// re-derives the condition if it persists.
func (e *Engine) pushRate(name string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		start := time.Now()
		err := e.ledger.SetRate(e.ctx, name, e.store.DefaultSpendRate())
		e.observe(metrics.ProtocolSetRate, start, err)
	}()
}

func (e *Engine) journalSpend(name string, micros int64) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordSpend(e.ctx, name, micros); err != nil {
		e.log.Warn("failed to journal settled spend",
			zap.String("account", name),
			zap.Error(err),
		)
	}
}

// localKey resolves a remote account name to the local replica's key by
// appending the instance suffix when it is absent.
func (e *Engine) localKey(name string) domain.AccountKey {
	return domain.AccountKey(name).WithSuffix(e.suffix)
}

// observe records one request's duration and status. Parse failures are
// counted separately from transport failures; neither mutates local state.
func (e *Engine) observe(protocol string, start time.Time, err error) {
	e.met.SyncDuration.WithLabelValues(protocol).Observe(time.Since(start).Seconds())

	status := metrics.StatusSuccess
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrParse):
		status = metrics.StatusParseError
	default:
		status = metrics.StatusTransportError
	}
	e.met.SyncRequests.WithLabelValues(protocol, status).Inc()

	if err != nil && !errors.Is(err, context.Canceled) {
		e.log.Warn("ledger request failed",
			zap.String("protocol", protocol),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
	}
}
