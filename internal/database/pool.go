package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// PoolConfig defines database connection pool configuration
type PoolConfig struct {
	// Connection settings
	Driver string
	DSN    string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Health check settings; zero disables the background check
	HealthCheckInterval time.Duration

	// Query settings
	SlowQueryThreshold time.Duration

	// Retry settings
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultPoolConfig returns the settings used when config leaves them unset.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Driver:              "postgres",
		MaxOpenConns:        25,
		MaxIdleConns:        5,
		ConnMaxLifetime:     30 * time.Minute,
		ConnMaxIdleTime:     5 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		SlowQueryThreshold:  500 * time.Millisecond,
		MaxRetries:          2,
		RetryBackoff:        100 * time.Millisecond,
	}
}

// Pool manages database connections with monitoring and retries
type Pool struct {
	db           *sqlx.DB
	config       PoolConfig
	metrics      *poolMetrics
	logger       *zap.Logger
	slowQueryLog []SlowQuery
	slowMu       sync.RWMutex
	stop         chan struct{}
	closeOnce    sync.Once
}

// SlowQuery represents a slow database query
type SlowQuery struct {
	Query     string
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

type poolMetrics struct {
	openConnections prometheus.Gauge
	idleConnections prometheus.Gauge
	queryDuration   prometheus.Histogram
	queryErrors     prometheus.Counter
	retries         prometheus.Counter
	slowQueries     prometheus.Counter
	transactions    *prometheus.CounterVec
}

var (
	poolMetricsOnce sync.Once
	poolMetricsInst *poolMetrics
)

func globalPoolMetrics() *poolMetrics {
	poolMetricsOnce.Do(func() {
		poolMetricsInst = &poolMetrics{
			openConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "pesflow", Subsystem: "db",
				Name: "pool_open_connections",
				Help: "Number of open database connections",
			}),
			idleConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "pesflow", Subsystem: "db",
				Name: "pool_idle_connections",
				Help: "Number of idle database connections",
			}),
			queryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "pesflow", Subsystem: "db",
				Name:    "query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			}),
			queryErrors: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow", Subsystem: "db",
				Name: "query_errors_total",
				Help: "Total number of query errors",
			}),
			retries: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow", Subsystem: "db",
				Name: "query_retries_total",
				Help: "Total number of retried queries",
			}),
			slowQueries: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "pesflow", Subsystem: "db",
				Name: "slow_queries_total",
				Help: "Total number of slow queries",
			}),
			transactions: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pesflow", Subsystem: "db",
				Name: "transactions_total",
				Help: "Database transactions labeled by outcome",
			}, []string{"outcome"}),
		}
	})
	return poolMetricsInst
}

// Open connects to the configured database, pins the placeholder dialect and
// starts the health check loop.
func Open(ctx context.Context, config PoolConfig, logger *zap.Logger) (*Pool, error) {
	driverName, err := DriverName(config.Driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(config.DSN) == "" {
		return nil, errors.New("database dsn is required")
	}

	db, err := sqlx.Open(driverName, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	SetDriver(config.Driver)
	pool := NewPool(db, config, logger)
	if config.HealthCheckInterval > 0 {
		go pool.healthCheckLoop()
	}
	return pool, nil
}

// NewPool wraps an already opened handle. No background work is started.
func NewPool(db *sqlx.DB, config PoolConfig, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		db:      db,
		config:  config,
		metrics: globalPoolMetrics(),
		logger:  logger.Named("db"),
		stop:    make(chan struct{}),
	}
}

// DB exposes the underlying handle.
func (p *Pool) DB() *sqlx.DB { return p.db }

// Exec executes a statement with retries on transient errors.
func (p *Pool) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := p.withRetry(ctx, query, func() error {
		var execErr error
		result, execErr = p.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

// Get scans a single row into dest with retries on transient errors.
func (p *Pool) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return p.withRetry(ctx, query, func() error {
		return p.db.GetContext(ctx, dest, query, args...)
	})
}

// Select scans all rows into dest with retries on transient errors.
func (p *Pool) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return p.withRetry(ctx, query, func() error {
		return p.db.SelectContext(ctx, dest, query, args...)
	})
}

// InTx runs fn in a transaction. fn's error rolls back; otherwise it commits.
func (p *Pool) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		p.metrics.queryErrors.Inc()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		p.metrics.transactions.WithLabelValues("rollback").Inc()
		if rbErr := tx.Rollback(); rbErr != nil {
			p.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		p.metrics.transactions.WithLabelValues("commit_failed").Inc()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	p.metrics.transactions.WithLabelValues("commit").Inc()
	return nil
}

// Stats returns connection pool statistics
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// SlowQueries returns recent slow queries
func (p *Pool) SlowQueries() []SlowQuery {
	p.slowMu.RLock()
	defer p.slowMu.RUnlock()

	queries := make([]SlowQuery, len(p.slowQueryLog))
	copy(queries, p.slowQueryLog)
	return queries
}

// Close stops background work and closes the handle.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })
	return p.db.Close()
}

func (p *Pool) withRetry(ctx context.Context, query string, run func() error) error {
	var err error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.metrics.retries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryBackoff * time.Duration(attempt)):
			}
		}

		timer := prometheus.NewTimer(p.metrics.queryDuration)
		start := time.Now()
		err = run()
		timer.ObserveDuration()

		if d := time.Since(start); p.config.SlowQueryThreshold > 0 && d > p.config.SlowQueryThreshold {
			p.logSlowQuery(query, d, err)
		}

		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if !isRetryableError(err) {
			p.metrics.queryErrors.Inc()
			return err
		}
		p.logger.Debug("retrying query", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	p.metrics.queryErrors.Inc()
	return fmt.Errorf("query failed after %d retries: %w", p.config.MaxRetries, err)
}

func (p *Pool) logSlowQuery(query string, duration time.Duration, err error) {
	p.metrics.slowQueries.Inc()
	p.logger.Warn("slow query", zap.Duration("duration", duration), zap.String("query", query), zap.Error(err))

	p.slowMu.Lock()
	defer p.slowMu.Unlock()

	// Keep only last 100 slow queries
	if len(p.slowQueryLog) >= 100 {
		p.slowQueryLog = p.slowQueryLog[1:]
	}
	p.slowQueryLog = append(p.slowQueryLog, SlowQuery{
		Query:     query,
		Duration:  duration,
		Timestamp: time.Now(),
		Error:     err,
	})
}

func (p *Pool) healthCheckLoop() {
	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.db.PingContext(ctx); err != nil {
				p.logger.Error("database health check failed", zap.Error(err))
			}
			cancel()

			stats := p.db.Stats()
			p.metrics.openConnections.Set(float64(stats.OpenConnections))
			p.metrics.idleConnections.Set(float64(stats.Idle))
		case <-p.stop:
			return
		}
	}
}

var retryableErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"deadline exceeded",
	"timeout",
	"too many connections",
	"database is locked",
}

// isRetryableError checks if an error is retryable
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, retryable := range retryableErrors {
		if strings.Contains(msg, retryable) {
			return true
		}
	}
	return false
}
