// Package pool provides per-descriptor connection pools with explicit
// handle checkout semantics.
//
// The Manager is the sole shared mutable resource of the engine: it
// serializes pool creation under a lock, and each pool enforces
// at-most-N concurrent handles with a semaphore. Checkout and return
// are strictly paired; a double release is reported as a fault, never
// expected to occur under correct usage.
package pool

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/log"
)

// DefaultMaxPoolSize applies when a descriptor carries no pool-size
// hint.
const DefaultMaxPoolSize = 4

const defaultAcquireTimeout = 10 * time.Second

// Manager owns a pool of live connections per configured target.
type Manager struct {
	mu     sync.Mutex
	pools  map[string]*Pool
	logger *log.Logger
	closed bool
}

// NewManager creates a connection manager.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		pools:  make(map[string]*Pool),
		logger: logger,
	}
}

// Pool wraps a driver-level connection pool for one descriptor.
type Pool struct {
	desc    dialect.Descriptor
	dialect dialect.Dialect
	db      *sql.DB

	// slots enforces at-most-N concurrent handles.
	slots chan struct{}
}

// Descriptor returns the pool's target identity.
func (p *Pool) Descriptor() dialect.Descriptor { return p.desc }

// Handle is a checked-out connection bound to one descriptor,
// exclusively owned by the caller until released.
type Handle struct {
	mu       sync.Mutex
	pool     *Pool
	conn     *sql.Conn
	released bool
}

// Conn exposes the underlying dedicated connection.
func (h *Handle) Conn() *sql.Conn { return h.conn }

// Dialect returns the backend adapter for this handle.
func (h *Handle) Dialect() dialect.Dialect { return h.pool.dialect }

// Descriptor returns the descriptor this handle is bound to.
func (h *Handle) Descriptor() dialect.Descriptor { return h.pool.desc }

// Released reports whether the handle has been returned to its pool.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Acquire checks out a handle for the descriptor, opening the pool on
// first use. It fails with a connection error when the backend is
// unreachable or credentials are rejected, and with a pool-exhausted
// error when no handle frees up within the bounded wait (immediately,
// when the descriptor is configured fail-fast).
func (m *Manager) Acquire(ctx context.Context, desc dialect.Descriptor) (*Handle, error) {
	p, err := m.pool(ctx, desc)
	if err != nil {
		return nil, err
	}

	// Reserve a slot before asking the driver for a connection so the
	// at-most-N bound holds regardless of driver-side pooling.
	if desc.FailFast {
		select {
		case <-p.slots:
		default:
			return nil, errors.Newf(errors.KindConnection, errors.CodePoolExhausted,
				"pool exhausted for %s", desc.SafeString()).WithOp("Pool.Acquire")
		}
	} else {
		wait := desc.AcquireTimeout
		if wait <= 0 {
			wait = defaultAcquireTimeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-p.slots:
		case <-timer.C:
			return nil, errors.Newf(errors.KindConnection, errors.CodePoolExhausted,
				"no free handle for %s within %v", desc.SafeString(), wait).WithOp("Pool.Acquire")
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.KindTimeout, errors.CodeExecCancelled,
				"acquire cancelled").WithOp("Pool.Acquire")
		}
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.slots <- struct{}{}
		return nil, errors.Wrapf(err, errors.KindConnection, errors.CodeConnectFailed,
			"checkout failed for %s", desc.SafeString()).WithOp("Pool.Acquire")
	}

	m.logger.Debug(log.CategoryPool, "handle acquired", "target", desc.SafeString())
	return &Handle{pool: p, conn: conn}, nil
}

// Release returns a handle to its pool. Releasing a handle twice is a
// programming error reported as a fault; pool state is unaffected.
func (m *Manager) Release(h *Handle) error {
	if h == nil {
		return errors.New(errors.KindFault, errors.CodeMisuse, "release of nil handle")
	}

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return errors.New(errors.KindFault, errors.CodeDoubleRelease,
			"handle already released").WithOp("Pool.Release").
			WithField("target", h.pool.desc.SafeString())
	}
	h.released = true
	h.mu.Unlock()

	err := h.conn.Close()
	h.pool.slots <- struct{}{}

	m.logger.Debug(log.CategoryPool, "handle released", "target", h.pool.desc.SafeString())
	if err != nil {
		return errors.Wrap(err, errors.KindConnection, errors.CodeConnectFailed,
			"closing checked-out connection").WithOp("Pool.Release")
	}
	return nil
}

// Ping performs a lightweight liveness round trip for the descriptor
// without consuming a checkout slot.
func (m *Manager) Ping(ctx context.Context, desc dialect.Descriptor) error {
	p, err := m.pool(ctx, desc)
	if err != nil {
		return err
	}
	if err := p.db.PingContext(ctx); err != nil {
		return errors.Wrapf(err, errors.KindConnection, errors.CodePingFailed,
			"ping failed for %s", desc.SafeString())
	}
	return nil
}

// Capabilities returns the backend capability flags for a descriptor
// without opening a connection.
func (m *Manager) Capabilities(desc dialect.Descriptor) (dialect.Capabilities, error) {
	d, err := dialect.For(desc.Kind)
	if err != nil {
		return dialect.Capabilities{}, err
	}
	return d.Capabilities(), nil
}

// Close shuts down every pool. Outstanding handles are invalidated.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for key, p := range m.pools {
		if err := p.db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.pools, key)
	}
	m.closed = true
	return errors.Join(errs...)
}

// pool returns the pool for a descriptor, opening it on first acquire.
// The manager never silently downgrades to a different backend kind:
// an unknown kind is an error, not a fallback.
func (m *Manager) pool(ctx context.Context, desc dialect.Descriptor) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.KindFault, errors.CodeMisuse, "manager is closed")
	}

	key := desc.Key()
	if p, ok := m.pools[key]; ok {
		return p, nil
	}

	d, err := dialect.For(desc.Kind)
	if err != nil {
		return nil, err
	}

	dsn, err := d.DSN(desc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConnection, errors.CodeConfigInvalid,
			"building DSN for %s", desc.SafeString())
	}

	size := desc.MaxPoolSize
	if size <= 0 {
		size = DefaultMaxPoolSize
	}
	idle := desc.MinPoolSize
	if idle <= 0 || idle > size {
		idle = 1
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConnection, errors.CodeConnectFailed,
			"opening %s", desc.SafeString())
	}
	// One driver connection beyond the checkout slots so Ping can
	// round-trip while every handle is checked out.
	db.SetMaxOpenConns(size + 1)
	db.SetMaxIdleConns(idle)

	// Open-time smoke test; sql.Open alone does not dial.
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, errors.KindConnection, errors.CodeConnectFailed,
			"connecting to %s", desc.SafeString())
	}

	slots := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		slots <- struct{}{}
	}

	p := &Pool{desc: desc, dialect: d, db: db, slots: slots}
	m.pools[key] = p

	m.logger.Info(log.CategoryPool, "pool opened",
		"target", desc.SafeString(), "size", size)
	return p, nil
}
