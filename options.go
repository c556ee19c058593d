package localbanker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bidstream-io/localbanker/internal/domain"
)

// Option configures the Banker.
type Option interface {
	apply(*bankerConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*bankerConfig)

func (f optionFunc) apply(c *bankerConfig) { f(c) }

type bankerConfig struct {
	timeout        time.Duration
	maxConnections int

	spendRate domain.Amount
	debug     bool

	reauthorizeInterval time.Duration
	spendUpdateInterval time.Duration
	registerInterval    time.Duration

	journalAddrs    []string
	journalPassword string
	journalTTL      time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithRequestTimeout bounds every ledger request end to end. Default: 1s.
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *bankerConfig) {
		c.timeout = d
	})
}

// WithMaxConnections caps connections to the ledger host. Default: 8.
func WithMaxConnections(n int) Option {
	return optionFunc(func(c *bankerConfig) {
		c.maxConnections = n
	})
}

// WithSpendRate sets the process-wide default spend-rate limit in
// micro-units. Default: 100000 (one tenth of a dollar per period).
func WithSpendRate(rate Amount) Option {
	return optionFunc(func(c *bankerConfig) {
		c.spendRate = rate
	})
}

// WithDebug enables fine-grained per-account debug logging on hot-path and
// synchronization outcomes.
func WithDebug() Option {
	return optionFunc(func(c *bankerConfig) {
		c.debug = true
	})
}

// WithReauthorizeInterval overrides the reauthorize protocol interval.
// Default: 1s.
func WithReauthorizeInterval(d time.Duration) Option {
	return optionFunc(func(c *bankerConfig) {
		c.reauthorizeInterval = d
	})
}

// WithSpendUpdateInterval overrides the spend-update protocol interval.
// Default: 500ms.
func WithSpendUpdateInterval(d time.Duration) Option {
	return optionFunc(func(c *bankerConfig) {
		c.spendUpdateInterval = d
	})
}

// WithRegisterInterval overrides the lazy-registration sweep interval.
// Default: 1s.
func WithRegisterInterval(d time.Duration) Option {
	return optionFunc(func(c *bankerConfig) {
		c.registerInterval = d
	})
}

// WithSpendJournal enables write-behind spend journaling to Redis. The
// journal is operational telemetry only; the bid/win hot path never touches
// it.
func WithSpendJournal(addr, password string) Option {
	return optionFunc(func(c *bankerConfig) {
		c.journalAddrs = []string{addr}
		c.journalPassword = password
	})
}

// WithSpendJournalTTL bounds how long an idle account's journal counter
// survives. Default: 48h.
func WithSpendJournalTTL(ttl time.Duration) Option {
	return optionFunc(func(c *bankerConfig) {
		c.journalTTL = ttl
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *bankerConfig) {
		c.logger = l
	})
}

// WithPrometheus registers banker metrics on the given registerer. Pass nil
// to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *bankerConfig) {
		c.metricsReg = reg
	})
}
