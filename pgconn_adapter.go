package pgsession

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgConnAdapter narrows *pgconn.PgConn down to the wireConn interface the
// rest of this package depends on, so session_test.go can substitute a
// fake wire client without a live PostgreSQL server — the same spirit as
// the teacher's event/eventbus tests driving a bare Datasource{} with no
// network behind it.
type pgConnAdapter struct {
	conn *pgconn.PgConn
}

func (a *pgConnAdapter) Prepare(ctx context.Context, name, sql string, paramOIDs []uint32) (*statementDescription, error) {
	desc, err := a.conn.Prepare(ctx, name, sql, paramOIDs)
	if err != nil {
		return nil, err
	}
	return &statementDescription{
		Name:      desc.Name,
		SQL:       desc.SQL,
		ParamOIDs: desc.ParamOIDs,
		Fields:    adaptFields(desc.Fields),
	}, nil
}

func (a *pgConnAdapter) ExecParams(ctx context.Context, sql string, paramValues [][]byte, paramOIDs []uint32, paramFormats []int16, resultFormats []int16) resultReader {
	return &resultReaderAdapter{rr: a.conn.ExecParams(ctx, sql, paramValues, paramOIDs, paramFormats, resultFormats)}
}

func (a *pgConnAdapter) ExecPrepared(ctx context.Context, stmtName string, paramValues [][]byte, paramFormats []int16, resultFormats []int16) resultReader {
	return &resultReaderAdapter{rr: a.conn.ExecPrepared(ctx, stmtName, paramValues, paramFormats, resultFormats)}
}

func (a *pgConnAdapter) Exec(ctx context.Context, sql string) multiResultReader {
	return &multiResultReaderAdapter{mrr: a.conn.Exec(ctx, sql)}
}

func (a *pgConnAdapter) Close(ctx context.Context) error {
	return a.conn.Close(ctx)
}

func (a *pgConnAdapter) IsClosed() bool {
	return a.conn.IsClosed()
}

type resultReaderAdapter struct {
	rr *pgconn.ResultReader
}

func (r *resultReaderAdapter) NextRow() bool     { return r.rr.NextRow() }
func (r *resultReaderAdapter) Values() [][]byte  { return r.rr.Values() }
func (r *resultReaderAdapter) FieldDescriptions() []FieldInfo {
	return adaptFields(r.rr.FieldDescriptions())
}

func (r *resultReaderAdapter) Close() (commandTag, error) {
	tag, err := r.rr.Close()
	return commandTag{rowsAffected: tag.RowsAffected()}, err
}

type multiResultReaderAdapter struct {
	mrr *pgconn.MultiResultReader
}

func (m *multiResultReaderAdapter) ReadAll() ([]commandTag, error) {
	results, err := m.mrr.ReadAll()
	if err != nil {
		return nil, err
	}
	tags := make([]commandTag, len(results))
	for i, r := range results {
		tags[i] = commandTag{rowsAffected: r.CommandTag.RowsAffected()}
	}
	return tags, nil
}

func adaptFields(fields []pgconn.FieldDescription) []FieldInfo {
	out := make([]FieldInfo, len(fields))
	for i, f := range fields {
		out[i] = FieldInfo{Name: f.Name, DataTypeOID: f.DataTypeOID}
	}
	return out
}
