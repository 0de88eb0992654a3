package pgsession

import (
	"context"
	"testing"
)

func TestBeginTransaction_IncrementsGaugeOnSuccess(t *testing.T) {
	s := newTestSession(t, newFakeWireConn())
	metrics := NewEventMetrics()

	tx, err := BeginTransaction(context.Background(), s, "BEGIN", TxOpts{}, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := metrics.Gauge(ActiveQueriesGauge); got != 1 {
		t.Errorf("active_queries gauge = %v, want 1", got)
	}
	if tx.State() != TransactionActive {
		t.Errorf("State() = %v, want Active", tx.State())
	}
}

func TestBeginTransaction_RejectsNesting(t *testing.T) {
	s := newTestSession(t, newFakeWireConn())
	metrics := NewEventMetrics()

	tx, err := BeginTransaction(context.Background(), s, "BEGIN", TxOpts{}, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = BeginTransaction(context.Background(), tx, "BEGIN", TxOpts{}, metrics)
	if err == nil {
		t.Fatal("expected an error when nesting a transaction inside a transaction")
	}
}

func TestCommit_DecrementsGaugeExactlyOnce(t *testing.T) {
	s := newTestSession(t, newFakeWireConn())
	metrics := NewEventMetrics()

	tx, err := BeginTransaction(context.Background(), s, "BEGIN", TxOpts{}, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := metrics.Gauge(ActiveQueriesGauge); got != 0 {
		t.Errorf("active_queries gauge = %v, want 0 after commit", got)
	}
	if tx.State() != TransactionCommitted {
		t.Errorf("State() = %v, want Committed", tx.State())
	}

	if err := tx.Commit(context.Background()); err == nil {
		t.Error("expected committing an already-committed transaction to fail")
	}
	if got := metrics.Gauge(ActiveQueriesGauge); got != 0 {
		t.Errorf("active_queries gauge = %v, want unchanged at 0 after a rejected double-commit", got)
	}
}

func TestRollback_DecrementsGaugeExactlyOnce(t *testing.T) {
	s := newTestSession(t, newFakeWireConn())
	metrics := NewEventMetrics()

	tx, err := BeginTransaction(context.Background(), s, "BEGIN", TxOpts{}, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := metrics.Gauge(ActiveQueriesGauge); got != 0 {
		t.Errorf("active_queries gauge = %v, want 0 after rollback", got)
	}
	if tx.State() != TransactionRolledBack {
		t.Errorf("State() = %v, want RolledBack", tx.State())
	}
}

func TestBeginTransaction_IssuesIsolationBeforeBeginWhenConfigured(t *testing.T) {
	conn := newFakeWireConn()
	s := newTestSession(t, conn)
	metrics := NewEventMetrics()

	_, err := BeginTransaction(context.Background(), s, "BEGIN", TxOpts{
		HasIsolation:   true,
		IsolationLevel: IsolationLevelSerializable,
		IsolationFirst: true,
	}, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"SET TRANSACTION ISOLATION LEVEL SERIALIZABLE", "BEGIN"}
	if len(conn.execs) != 2 || conn.execs[0] != want[0] || conn.execs[1] != want[1] {
		t.Errorf("execs = %q, want %q", conn.execs, want)
	}
}

func TestBeginTransaction_RejectsSnapshotIsolation(t *testing.T) {
	s := newTestSession(t, newFakeWireConn())
	metrics := NewEventMetrics()

	_, err := BeginTransaction(context.Background(), s, "BEGIN", TxOpts{
		HasIsolation:   true,
		IsolationLevel: IsolationLevelSnapshot,
		IsolationFirst: true,
	}, metrics)
	if err == nil {
		t.Fatal("expected begin to fail when the isolation level is Snapshot")
	}
}

func TestOwnedTransaction_ForwardsQueryableOperations(t *testing.T) {
	conn := newFakeWireConn()
	conn.fields = []FieldInfo{{Name: "id"}}
	conn.rows = [][][]byte{{[]byte("1")}}
	s := newTestSession(t, conn)
	metrics := NewEventMetrics()

	tx, err := BeginTransaction(context.Background(), s, "BEGIN", TxOpts{}, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rs, err := tx.QueryRaw(context.Background(), "SELECT id FROM widgets", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs.Rows) != 1 {
		t.Errorf("len(Rows) = %d, want 1", len(rs.Rows))
	}
	if !tx.IsHealthy() {
		t.Error("expected the transaction to forward IsHealthy to the underlying session")
	}
}
