package pgsession

import (
	"context"
	"errors"
)

// fakeWireConn is a scripted stand-in for the wire client, letting
// session_test.go and queryable_test.go exercise fetchCached, performIO,
// and the Queryable operations without a live PostgreSQL server — the
// same spirit as the teacher's tests driving a bare Datasource{}.
type fakeWireConn struct {
	prepareCount int
	statements   map[string]*statementDescription

	rows    [][][]byte
	fields  []FieldInfo
	execErr error
	closed  bool

	lastExecParamsName string
	// execs records every simple-query command passed to Exec, in order.
	execs []string
}

func newFakeWireConn() *fakeWireConn {
	return &fakeWireConn{statements: make(map[string]*statementDescription)}
}

func (f *fakeWireConn) Prepare(ctx context.Context, name, sql string, paramOIDs []uint32) (*statementDescription, error) {
	f.prepareCount++
	if desc, ok := f.statements[sql]; ok {
		return desc, nil
	}
	desc := &statementDescription{Name: name, SQL: sql, ParamOIDs: paramOIDs, Fields: f.fields}
	f.statements[sql] = desc
	return desc, nil
}

func (f *fakeWireConn) ExecParams(ctx context.Context, sql string, paramValues [][]byte, paramOIDs []uint32, paramFormats []int16, resultFormats []int16) resultReader {
	return &fakeResultReader{rows: f.rows, fields: f.fields, err: f.execErr}
}

func (f *fakeWireConn) ExecPrepared(ctx context.Context, stmtName string, paramValues [][]byte, paramFormats []int16, resultFormats []int16) resultReader {
	f.lastExecParamsName = stmtName
	return &fakeResultReader{rows: f.rows, fields: f.fields, err: f.execErr}
}

func (f *fakeWireConn) Exec(ctx context.Context, sql string) multiResultReader {
	f.execs = append(f.execs, sql)
	return &fakeMultiResultReader{err: f.execErr}
}

func (f *fakeWireConn) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeWireConn) IsClosed() bool { return f.closed }

type fakeResultReader struct {
	rows   [][][]byte
	fields []FieldInfo
	idx    int
	err    error
}

func (r *fakeResultReader) NextRow() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeResultReader) Values() [][]byte { return r.rows[r.idx-1] }

func (r *fakeResultReader) FieldDescriptions() []FieldInfo { return r.fields }

func (r *fakeResultReader) Close() (commandTag, error) {
	return commandTag{rowsAffected: int64(len(r.rows))}, r.err
}

type fakeMultiResultReader struct {
	err error
}

func (m *fakeMultiResultReader) ReadAll() ([]commandTag, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []commandTag{{rowsAffected: 0}}, nil
}

var errFakeConnectionClosed = errors.New("fake: connection closed")
