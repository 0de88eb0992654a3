package pgsession

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Queryable is the polymorphic contract both *Session and
// *OwnedTransaction satisfy (§6, §9 "polymorphism over session and
// transaction"). Every I/O-bearing method takes a context.Context,
// Go's idiomatic stand-in for the source's async cancellation; the two
// pure predicates are plain synchronous calls.
type Queryable interface {
	Query(ctx context.Context, q Query) (*ResultSet, error)
	Execute(ctx context.Context, q Query) (uint64, error)
	QueryRaw(ctx context.Context, sql string, params []any) (*ResultSet, error)
	QueryRawTyped(ctx context.Context, sql string, params []any) (*ResultSet, error)
	ExecuteRaw(ctx context.Context, sql string, params []any) (uint64, error)
	ExecuteRawTyped(ctx context.Context, sql string, params []any) (uint64, error)
	RawCmd(ctx context.Context, cmd string) error
	Version(ctx context.Context) (*string, error)
	IsHealthy() bool
	SetTxIsolationLevel(ctx context.Context, level IsolationLevel) error
	RequiresIsolationFirst() bool
}

// DefaultRowDecoder decodes every column as its raw text-protocol string
// (or nil for a SQL NULL). OID-aware conversion to concrete Go types is
// an explicit non-goal (§1: "row-value conversion tables for PostgreSQL
// OIDs").
type DefaultRowDecoder struct{}

func (DefaultRowDecoder) Decode(values [][]byte, fields []FieldInfo) (Row, error) {
	row := make(Row, len(values))
	for i, v := range values {
		if v == nil {
			row[i] = nil
			continue
		}
		row[i] = string(v)
	}
	return row, nil
}

var _ Queryable = (*Session)(nil)

func (s *Session) Query(ctx context.Context, q Query) (*ResultSet, error) {
	if s.visitor == nil {
		return nil, newQueryInvalidInput("no SQL visitor configured for AST-level Query")
	}
	sql, params, err := s.visitor.Visit(q)
	if err != nil {
		return nil, err
	}
	return s.QueryRaw(ctx, sql, params)
}

func (s *Session) Execute(ctx context.Context, q Query) (uint64, error) {
	if s.visitor == nil {
		return 0, newQueryInvalidInput("no SQL visitor configured for AST-level Execute")
	}
	sql, params, err := s.visitor.Visit(q)
	if err != nil {
		return 0, err
	}
	return s.ExecuteRaw(ctx, sql, params)
}

func (s *Session) QueryRaw(ctx context.Context, sql string, params []any) (*ResultSet, error) {
	return s.runQuery(ctx, "postgres.query_raw", sql, params, false)
}

func (s *Session) QueryRawTyped(ctx context.Context, sql string, params []any) (*ResultSet, error) {
	return s.runQuery(ctx, "postgres.query_raw_typed", sql, params, true)
}

func (s *Session) ExecuteRaw(ctx context.Context, sql string, params []any) (uint64, error) {
	return s.runExecute(ctx, "postgres.execute_raw", sql, params, false)
}

func (s *Session) ExecuteRawTyped(ctx context.Context, sql string, params []any) (uint64, error) {
	return s.runExecute(ctx, "postgres.execute_raw_typed", sql, params, true)
}

// runQuery implements the common shape of §4.6 steps 1-6 for the query
// half of the contract.
func (s *Session) runQuery(ctx context.Context, operation, sql string, params []any, typed bool) (*ResultSet, error) {
	if err := checkParamCount(params); err != nil {
		return nil, err
	}
	started := time.Now()

	stmt, err := s.prepareFor(ctx, sql, params, typed)
	if err != nil {
		s.metrics.Observe(operation, time.Since(started), err)
		return nil, err
	}
	if stmt.Params() != len(params) {
		err := newIncorrectNumberOfParameters(stmt.Params(), len(params))
		s.metrics.Observe(operation, time.Since(started), err)
		return nil, err
	}

	values, err := encodeParams(params)
	if err != nil {
		s.metrics.Observe(operation, time.Since(started), err)
		return nil, err
	}

	rs, err := performIO(ctx, s, func(ctx context.Context) (*ResultSet, error) {
		reader := s.conn.ExecPrepared(ctx, stmt.Name, values, nil, nil)
		return decodeResultSet(reader, stmt.ColumnNames(), s.decoder)
	})

	s.metrics.Observe(operation, time.Since(started), err)
	s.inspector.Inspect(QueryInspect{Operation: operation, Query: sql, Args: params, Completed: interpolateQuery(sql, params), ExecutedAt: started, Duration: time.Since(started), Err: err})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *Session) runExecute(ctx context.Context, operation, sql string, params []any, typed bool) (uint64, error) {
	if err := checkParamCount(params); err != nil {
		return 0, err
	}
	started := time.Now()

	stmt, err := s.prepareFor(ctx, sql, params, typed)
	if err != nil {
		s.metrics.Observe(operation, time.Since(started), err)
		return 0, err
	}
	if stmt.Params() != len(params) {
		err := newIncorrectNumberOfParameters(stmt.Params(), len(params))
		s.metrics.Observe(operation, time.Since(started), err)
		return 0, err
	}

	values, err := encodeParams(params)
	if err != nil {
		s.metrics.Observe(operation, time.Since(started), err)
		return 0, err
	}

	affected, err := performIO(ctx, s, func(ctx context.Context) (uint64, error) {
		reader := s.conn.ExecPrepared(ctx, stmt.Name, values, nil, nil)
		tag, err := reader.Close()
		if err != nil {
			return 0, err
		}
		return uint64(tag.RowsAffected()), nil
	})

	s.metrics.Observe(operation, time.Since(started), err)
	s.inspector.Inspect(QueryInspect{Operation: operation, Query: sql, Args: params, Completed: interpolateQuery(sql, params), ExecutedAt: started, Duration: time.Since(started), Err: err})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// prepareFor resolves the cached statement handle for sql, passing the
// actual parameter OIDs on the typed path and an empty slice otherwise,
// deferring type inference to the server (§4.4).
func (s *Session) prepareFor(ctx context.Context, sql string, params []any, typed bool) (*StatementHandle, error) {
	var oids []uint32
	if typed {
		oids = make([]uint32, len(params))
		for i, p := range params {
			oids[i] = oidForValue(p)
		}
	}
	return s.fetchCached(ctx, sql, oids)
}

// RawCmd bypasses preparation entirely and uses the simple-query
// protocol (§4.6: "raw_cmd(cmd) bypasses preparation").
func (s *Session) RawCmd(ctx context.Context, cmd string) error {
	started := time.Now()
	_, err := performIO(ctx, s, func(ctx context.Context) (struct{}, error) {
		_, err := s.conn.Exec(ctx, cmd).ReadAll()
		return struct{}{}, err
	})
	s.metrics.Observe("postgres.raw_cmd", time.Since(started), err)
	s.inspector.Inspect(QueryInspect{Operation: "postgres.raw_cmd", Query: cmd, Completed: cleanupQuery(cmd), ExecutedAt: started, Duration: time.Since(started), Err: err})
	return err
}

// Version runs SELECT version() and returns the first row's single
// column, matching §4.6's "runs SELECT version() through query_raw".
func (s *Session) Version(ctx context.Context) (*string, error) {
	rs, err := s.QueryRaw(ctx, "SELECT version()", nil)
	if err != nil {
		return nil, err
	}
	if len(rs.Rows) == 0 {
		return nil, nil
	}
	v, ok := rs.Rows[0][0].(string)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// SetTxIsolationLevel emits SET TRANSACTION ISOLATION LEVEL {level} via
// RawCmd. Snapshot has no PostgreSQL equivalent and is rejected without
// touching the network (§4.6).
func (s *Session) SetTxIsolationLevel(ctx context.Context, level IsolationLevel) error {
	if level == IsolationLevelSnapshot {
		return newInvalidIsolationLevel(string(level))
	}
	return s.RawCmd(ctx, fmt.Sprintf("SET TRANSACTION ISOLATION LEVEL %s", level))
}

// RequiresIsolationFirst is false for PostgreSQL: BEGIN may be issued
// before the isolation statement (§4.6, GLOSSARY "Isolation-first").
func (s *Session) RequiresIsolationFirst() bool { return false }

// ServerResetQuery executes DEALLOCATE ALL inside tx when pg_bouncer is
// true, a no-op otherwise (§4.6).
func (s *Session) ServerResetQuery(ctx context.Context, tx Queryable) error {
	if !s.pgBouncer {
		return nil
	}
	return tx.RawCmd(ctx, "DEALLOCATE ALL")
}

func checkParamCount(params []any) error {
	if len(params) > MaxBindParameters {
		return newQueryInvalidInput(fmt.Sprintf("too many bind parameters: %d exceeds the limit of %d", len(params), MaxBindParameters))
	}
	return nil
}

func decodeResultSet(reader resultReader, columns []string, decoder RowDecoder) (*ResultSet, error) {
	rs := &ResultSet{Columns: columns}
	fields := reader.FieldDescriptions()
	for reader.NextRow() {
		row, err := decoder.Decode(reader.Values(), fields)
		if err != nil {
			_, _ = reader.Close()
			return nil, err
		}
		rs.Rows = append(rs.Rows, row)
	}
	if _, err := reader.Close(); err != nil {
		return nil, err
	}
	return rs, nil
}

// encodeParams renders each bound value into its text-protocol wire
// representation. Arrays and composite types are an AST/visitor concern
// (explicit non-goal, §1); this path serves the scalar shapes the
// *_raw operations are specified against.
func encodeParams(params []any) ([][]byte, error) {
	out := make([][]byte, len(params))
	for i, p := range params {
		b, err := encodeParam(p)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func encodeParam(p any) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	switch v := p.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case bool:
		return []byte(strconv.FormatBool(v)), nil
	case int:
		return []byte(strconv.Itoa(v)), nil
	case int32:
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), nil
	case float32:
		return []byte(strconv.FormatFloat(float64(v), 'g', -1, 32)), nil
	case float64:
		return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
	case time.Time:
		return []byte(v.Format("2006-01-02 15:04:05.999999-07:00")), nil
	default:
		return nil, newQueryInvalidInput(fmt.Sprintf("unsupported parameter type %T", p))
	}
}

// Well-known PostgreSQL type OIDs for the scalar Go kinds encodeParam
// handles, used only on the _typed prepare path (§4.4); 0 defers
// inference to the server, which is always a valid OID to send.
const (
	oidText      uint32 = 25
	oidBool      uint32 = 16
	oidInt4      uint32 = 23
	oidInt8      uint32 = 20
	oidFloat4    uint32 = 700
	oidFloat8    uint32 = 701
	oidTimestamp uint32 = 1184
)

func oidForValue(p any) uint32 {
	switch p.(type) {
	case string, []byte:
		return oidText
	case bool:
		return oidBool
	case int, int32:
		return oidInt4
	case int64:
		return oidInt8
	case float32:
		return oidFloat4
	case float64:
		return oidFloat8
	case time.Time:
		return oidTimestamp
	default:
		return 0
	}
}
