package pgsession

import (
	"context"
	"time"
)

// ConnectionURL is the fully parsed, defaulted connection configuration
// produced by ParseConnectionURL (§3, §4.1). The accessors in url.go only
// read it; the With* setters in builder.go modify the receiver in place
// and are the way to construct one programmatically instead of through a
// URL string.
type ConnectionURL struct {
	host     string
	port     int
	user     string
	password string
	dbname   string
	schema   string // empty means "unset"; callers default to "public" at use site

	pgBouncer           bool
	statementCacheSize  int

	sslMode          SSLMode
	sslAcceptMode    SSLAcceptMode
	certificateFile  string
	identityFile     string
	identityPassword string

	channelBinding ChannelBindingMode

	connectTimeout            *time.Duration // nil means "none"
	poolTimeout               *time.Duration
	socketTimeout             *time.Duration
	maxConnectionLifetime     *time.Duration
	maxIdleConnectionLifetime *time.Duration
	connectionLimit           *int

	applicationName string
	options         string
}

// FieldInfo describes one column of a result set, carried on a
// StatementHandle and echoed onto every ResultSet produced from it.
type FieldInfo struct {
	Name        string
	DataTypeOID uint32
}

// Row is one decoded row of a ResultSet, positionally aligned with
// ResultSet.Columns.
type Row []any

// ResultSet is the output of query/query_raw/query_raw_typed (§4.6).
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Query is the AST node a SQLVisitor renders into (sql, params). The core
// never inspects it; it is an opaque collaborator type (§1 non-goals: "the
// AST and SQL-generation visitor").
type Query any

// SQLVisitor renders an AST Query into raw SQL text and its bind
// parameters. Required collaborator, §6.
type SQLVisitor interface {
	Visit(q Query) (sql string, params []any, err error)
}

// RowDecoder turns one wire row (already positionally aligned with a
// StatementHandle's Fields) into a domain Row. Required collaborator, §6.
// The core ships DefaultRowDecoder, which performs no OID-aware
// conversion (row-value conversion tables are an explicit non-goal, §1) —
// it decodes every column as its raw text-protocol string, or nil.
type RowDecoder interface {
	Decode(values [][]byte, fields []FieldInfo) (Row, error)
}

// MetricsSink is the small collaborator interface the Queryable
// operations report timing and gauge changes through (§6). Metrics
// backend *selection* is a non-goal; the core depends on this interface
// and ships exactly one concrete default (metrics.go, adapted from the
// teacher's event bus).
type MetricsSink interface {
	// Observe records that operation completed in the given duration,
	// successfully or not.
	Observe(operation string, d time.Duration, err error)
	// GaugeSet updates a named gauge to an absolute value.
	GaugeSet(name string, value float64)
	// GaugeAdd adjusts a named gauge by delta (may be negative).
	GaugeAdd(name string, delta float64)
}

// noopMetricsSink discards everything. Used when a Session is constructed
// without an explicit MetricsSink.
type noopMetricsSink struct{}

func (noopMetricsSink) Observe(string, time.Duration, error) {}
func (noopMetricsSink) GaugeSet(string, float64)              {}
func (noopMetricsSink) GaugeAdd(string, float64)              {}

// wireConn is the subset of *pgconn.PgConn the Session depends on. Tests
// substitute a fake implementation so unit tests never need a live
// PostgreSQL server, the same way the teacher's eventbus_test.go drives a
// bare Datasource{} without a live connection.
type wireConn interface {
	Prepare(ctx context.Context, name, sql string, paramOIDs []uint32) (*statementDescription, error)
	ExecParams(ctx context.Context, sql string, paramValues [][]byte, paramOIDs []uint32, paramFormats []int16, resultFormats []int16) resultReader
	ExecPrepared(ctx context.Context, stmtName string, paramValues [][]byte, paramFormats []int16, resultFormats []int16) resultReader
	Exec(ctx context.Context, sql string) multiResultReader
	Close(ctx context.Context) error
	IsClosed() bool
}

// resultReader is the subset of *pgconn.ResultReader consumed here.
type resultReader interface {
	NextRow() bool
	Values() [][]byte
	Close() (commandTag, error)
	FieldDescriptions() []FieldInfo
}

// multiResultReader is the subset of *pgconn.MultiResultReader consumed
// by raw_cmd's simple-query path.
type multiResultReader interface {
	ReadAll() ([]commandTag, error)
}

// commandTag mirrors pgconn.CommandTag's one piece of information this
// package needs.
type commandTag struct {
	rowsAffected int64
}

func (c commandTag) RowsAffected() int64 { return c.rowsAffected }

// statementDescription mirrors pgconn.StatementDescription: the prepared
// statement's name, parameter OIDs and column metadata as the wire client
// reports them. fetchCached copies it into the *StatementHandle that
// StatementCache stores.
type statementDescription struct {
	Name      string
	SQL       string
	ParamOIDs []uint32
	Fields    []FieldInfo
}
