package pgsession

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sivaosorg/loggy"
)

// TransactionState is the OwnedTransaction lifecycle (§3 "OwnedTransaction").
type TransactionState int32

const (
	TransactionActive TransactionState = iota
	TransactionCommitted
	TransactionRolledBack
)

func (s TransactionState) String() string {
	switch s {
	case TransactionCommitted:
		return "committed"
	case TransactionRolledBack:
		return "rolled_back"
	default:
		return "active"
	}
}

// TxOpts configures BeginTransaction: the isolation level to set (if
// any) and whether it must precede BEGIN (§4.7 step 1/3). PostgreSQL's
// RequiresIsolationFirst() is always false, but OwnedTransaction accepts
// the flag explicitly so the same code serves a dialect that needs it.
type TxOpts struct {
	IsolationLevel  IsolationLevel
	HasIsolation    bool
	IsolationFirst  bool
}

// OwnedTransaction holds a shared, non-owning reference to a Queryable
// session and forwards every operation to it (§3, §9 "polymorphism over
// session and transaction" / "cyclic references: none required"). No
// nesting: begin(session, ...) requires session to be a bare *Session,
// never another *OwnedTransaction.
type OwnedTransaction struct {
	session Queryable
	metrics MetricsSink

	mu    sync.Mutex
	state TransactionState

	finalizerArmed atomic.Bool
}

// BeginTransaction implements §4.7 steps 1-5. session must be the bare,
// un-wrapped Queryable the new transaction will forward to — passing an
// *OwnedTransaction is rejected with a QueryInvalidInput error.
func BeginTransaction(ctx context.Context, session Queryable, beginStmt string, opts TxOpts, metrics MetricsSink) (*OwnedTransaction, error) {
	if _, nested := session.(*OwnedTransaction); nested {
		return nil, newQueryInvalidInput("cannot begin a transaction from within a transaction")
	}
	if metrics == nil {
		metrics = noopMetricsSink{}
	}

	if opts.HasIsolation && opts.IsolationFirst {
		if err := session.SetTxIsolationLevel(ctx, opts.IsolationLevel); err != nil {
			return nil, err
		}
	}

	if err := session.RawCmd(ctx, beginStmt); err != nil {
		return nil, err
	}

	if opts.HasIsolation && !opts.IsolationFirst {
		if err := session.SetTxIsolationLevel(ctx, opts.IsolationLevel); err != nil {
			// The transaction is already open server-side; the error is
			// returned as is and no ROLLBACK is issued here.
			return nil, err
		}
	}

	tx := &OwnedTransaction{session: session, metrics: metrics, state: TransactionActive}

	if resetter, ok := session.(interface {
		ServerResetQuery(ctx context.Context, tx Queryable) error
	}); ok {
		if err := resetter.ServerResetQuery(ctx, tx); err != nil {
			return nil, err
		}
	}

	// The increment happens last, deliberately: a failure anywhere above
	// must not decrement a gauge it never incremented (§9 "gauge
	// bookkeeping").
	metrics.GaugeAdd(ActiveQueriesGauge, 1)

	tx.armImplicitRollback()
	return tx, nil
}

// armImplicitRollback attaches a finalizer that best-effort rolls back
// and decrements the gauge if the transaction is garbage-collected
// without Commit or Rollback having run (§9 "drop-without-commit
// semantics"). It is Go's nearest equivalent to a scoped destructor; it
// is not a substitute for callers calling Commit/Rollback explicitly —
// finalizers run at an unspecified time, if at all, under GC pressure.
func (tx *OwnedTransaction) armImplicitRollback() {
	runtime.SetFinalizer(tx, func(tx *OwnedTransaction) {
		tx.mu.Lock()
		finished := tx.state != TransactionActive
		tx.mu.Unlock()
		if finished {
			return
		}
		loggy.Warnf("pgsession | tx | transaction garbage-collected without commit or rollback; rolling back")
		// A background context: the caller that should have closed this
		// transaction is already gone.
		_ = tx.rollbackLocked(context.Background(), true)
	})
}

// Commit decrements the gauge, then issues COMMIT through the wrapped
// session (§4.7).
func (tx *OwnedTransaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	if tx.state != TransactionActive {
		tx.mu.Unlock()
		return newQueryInvalidInput(fmt.Sprintf("cannot commit a transaction in state %s", tx.state))
	}
	tx.mu.Unlock()

	tx.metrics.GaugeAdd(ActiveQueriesGauge, -1)
	err := tx.session.RawCmd(ctx, "COMMIT")

	tx.mu.Lock()
	tx.state = TransactionCommitted
	tx.mu.Unlock()
	runtime.SetFinalizer(tx, nil)
	return err
}

// Rollback decrements the gauge, then issues ROLLBACK.
func (tx *OwnedTransaction) Rollback(ctx context.Context) error {
	return tx.rollbackLocked(ctx, false)
}

func (tx *OwnedTransaction) rollbackLocked(ctx context.Context, implicit bool) error {
	tx.mu.Lock()
	if tx.state != TransactionActive {
		tx.mu.Unlock()
		if implicit {
			return nil
		}
		return newQueryInvalidInput(fmt.Sprintf("cannot roll back a transaction in state %s", tx.state))
	}
	tx.mu.Unlock()

	tx.metrics.GaugeAdd(ActiveQueriesGauge, -1)
	err := tx.session.RawCmd(ctx, "ROLLBACK")

	tx.mu.Lock()
	tx.state = TransactionRolledBack
	tx.mu.Unlock()
	if !implicit {
		runtime.SetFinalizer(tx, nil)
	}
	return err
}

// State reports the transaction's current lifecycle state.
func (tx *OwnedTransaction) State() TransactionState {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

var _ Queryable = (*OwnedTransaction)(nil)

func (tx *OwnedTransaction) Query(ctx context.Context, q Query) (*ResultSet, error) {
	return tx.session.Query(ctx, q)
}

func (tx *OwnedTransaction) Execute(ctx context.Context, q Query) (uint64, error) {
	return tx.session.Execute(ctx, q)
}

func (tx *OwnedTransaction) QueryRaw(ctx context.Context, sql string, params []any) (*ResultSet, error) {
	return tx.session.QueryRaw(ctx, sql, params)
}

func (tx *OwnedTransaction) QueryRawTyped(ctx context.Context, sql string, params []any) (*ResultSet, error) {
	return tx.session.QueryRawTyped(ctx, sql, params)
}

func (tx *OwnedTransaction) ExecuteRaw(ctx context.Context, sql string, params []any) (uint64, error) {
	return tx.session.ExecuteRaw(ctx, sql, params)
}

func (tx *OwnedTransaction) ExecuteRawTyped(ctx context.Context, sql string, params []any) (uint64, error) {
	return tx.session.ExecuteRawTyped(ctx, sql, params)
}

func (tx *OwnedTransaction) RawCmd(ctx context.Context, cmd string) error {
	return tx.session.RawCmd(ctx, cmd)
}

func (tx *OwnedTransaction) Version(ctx context.Context) (*string, error) {
	return tx.session.Version(ctx)
}

func (tx *OwnedTransaction) IsHealthy() bool {
	return tx.session.IsHealthy()
}

func (tx *OwnedTransaction) SetTxIsolationLevel(ctx context.Context, level IsolationLevel) error {
	return tx.session.SetTxIsolationLevel(ctx, level)
}

func (tx *OwnedTransaction) RequiresIsolationFirst() bool {
	return tx.session.RequiresIsolationFirst()
}
