package pgsession

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sivaosorg/loggy"
	"github.com/sivaosorg/wrapify"
)

// SessionOption customizes a Session at construction time. The core
// depends only on the small interfaces named in §6; every option below
// injects a collaborator rather than a concrete implementation, so a
// caller may substitute its own SQL visitor, metrics sink, row decoder,
// or query inspector without the core knowing the concrete type.
type SessionOption func(*Session)

// WithSQLVisitor installs the AST-rendering collaborator used by the
// query(q)/execute(q) operations.
func WithSQLVisitor(v SQLVisitor) SessionOption {
	return func(s *Session) { s.visitor = v }
}

// WithRowDecoder installs the row-decoding collaborator. Defaults to
// DefaultRowDecoder, which performs no OID-aware conversion.
func WithRowDecoder(d RowDecoder) SessionOption {
	return func(s *Session) { s.decoder = d }
}

// WithMetricsSink installs the metrics collaborator. Defaults to a
// no-op sink; pass an *EventMetrics (metrics.go) for observable gauges
// and timings.
func WithMetricsSink(m MetricsSink) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithQueryInspector installs the debug-tracing collaborator invoked
// after every raw execution. Defaults to DefaultQueryInspector.
func WithQueryInspector(i QueryInspector) SessionOption {
	return func(s *Session) { s.inspector = i }
}

// Session owns the live protocol client, the mutex-guarded statement
// cache, the socket-timeout policy, and the atomic is_healthy flag
// (§3 "Session"). It is the concrete, connected Queryable; OwnedTransaction
// wraps one.
type Session struct {
	url   *ConnectionURL
	conn  wireConn
	cache *StatementCache

	socketTimeout *time.Duration
	pgBouncer     bool

	isHealthy atomic.Bool

	visitor   SQLVisitor
	decoder   RowDecoder
	metrics   MetricsSink
	inspector QueryInspector
}

// Connect implements §4.3 Session Construction. It never retries; every
// failure is a typed ConnectorError and the caller owns disposal of any
// partially constructed resources (there are none exposed before success).
func Connect(ctx context.Context, url *ConnectionURL, opts ...SessionOption) (*Session, error) {
	if url.ChannelBinding() == ChannelBindingRequire && url.SSLMode() == SSLModeDisable {
		return nil, newInvalidConnectionArguments("channel_binding=require is incompatible with sslmode=disable")
	}

	tlsConfig, err := MaterializeTLS(url)
	if err != nil {
		return nil, err
	}

	cfg := &pgconn.Config{
		Host:           url.Host(),
		Port:           uint16(url.Port()),
		Database:       url.Dbname(),
		User:           url.User(),
		Password:       url.Password(),
		TLSConfig:      tlsConfig,
		RuntimeParams:  map[string]string{},
		ConnectTimeout: 0, // the timeout race is driven explicitly below, not by pgconn's own
	}
	if url.SSLMode() == SSLModePrefer {
		cfg.Fallbacks = []*pgconn.FallbackConfig{{Host: cfg.Host, Port: cfg.Port}}
	}
	if name := url.ApplicationName(); isNotEmpty(name) {
		cfg.RuntimeParams["application_name"] = name
	}
	if opt := url.Options(); isNotEmpty(opt) {
		cfg.RuntimeParams["options"] = opt
	}

	connectCtx := ctx
	var cancel context.CancelFunc
	if url.ConnectTimeout() != nil {
		connectCtx, cancel = context.WithTimeout(ctx, *url.ConnectTimeout())
		defer cancel()
	}

	started := time.Now()
	pgConn, err := pgconn.ConnectConfig(connectCtx, cfg)
	if err != nil {
		if connectCtx.Err() == context.DeadlineExceeded {
			diag := wrapify.WrapServiceUnavailable().WithMessagef("postgres session connect timed out to %s:%d", url.Host(), url.Port()).WithTimeout(time.Since(started))
			loggy.Errorf("pgsession | connect | %s", diag.Reply())
			return nil, newConnectTimeout(err)
		}
		translated := translateConnectError(url, err)
		diag := wrapify.WrapInternalServerError().WithMessagef("postgres session connect failed to %s:%d", url.Host(), url.Port()).WithErrSck(err)
		loggy.Errorf("pgsession | connect | %s", diag.Reply())
		return nil, translated
	}

	cache, err := url.Cache()
	if err != nil {
		_ = pgConn.Close(ctx)
		return nil, err
	}

	s := &Session{
		url:       url,
		conn:      &pgConnAdapter{pgConn},
		cache:     cache,
		pgBouncer: url.PgBouncer(),
		decoder:   DefaultRowDecoder{},
		metrics:   noopMetricsSink{},
		inspector: DefaultQueryInspector{},
	}
	s.socketTimeout = url.SocketTimeout()
	s.isHealthy.Store(true)
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initializeSession(ctx, url); err != nil {
		_ = pgConn.Close(ctx)
		return nil, err
	}

	loggy.Infof("pgsession | connect | established session host=%s port=%d dbname=%s", url.Host(), url.Port(), url.Dbname())
	return s, nil
}

// initializeSession issues the session-init batch of §4.3 step 5 via the
// simple-query protocol. The schema name is interpolated verbatim
// between double quotes with no escaping (§9 open question: "schema
// interpolation") — looksLikeIdentifier only downgrades to a warning,
// it never rewrites the caller's input.
func (s *Session) initializeSession(ctx context.Context, url *ConnectionURL) error {
	var b strings.Builder
	if schema := url.RawSchema(); isNotEmpty(schema) {
		if !looksLikeIdentifier(schema) {
			loggy.Warnf("pgsession | connect | schema %q contains a double quote; search_path will not be escaped", schema)
		}
		fmt.Fprintf(&b, "SET search_path = \"%s\";\n", schema)
	}
	b.WriteString("SET NAMES 'UTF8';")

	_, err := s.conn.Exec(ctx, b.String()).ReadAll()
	if err != nil {
		return translateConnectError(url, err)
	}
	return nil
}

// performIO races fn against the session's socket_timeout (when set) and
// marks the session unhealthy when the underlying error indicates the
// connection is gone (§4.5). It is the single chokepoint every Queryable
// operation's network call passes through.
func performIO[T any](ctx context.Context, s *Session, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	opCtx := ctx
	var cancel context.CancelFunc
	if s.socketTimeout != nil {
		opCtx, cancel = context.WithTimeout(ctx, *s.socketTimeout)
		defer cancel()
	}

	result, err := fn(opCtx)
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return zero, newSocketTimeout(err)
		}
		if isConnectionClosedErr(err) {
			s.isHealthy.Store(false)
			return zero, newConnectionClosed(err)
		}
		return zero, err
	}
	return result, nil
}

// IsHealthy reports the session's liveness flag. Once false it never
// recovers within the session's lifetime (§3).
func (s *Session) IsHealthy() bool {
	return s.isHealthy.Load()
}

// fetchCached implements §4.4. The cache mutex is held across the full
// prepare round-trip, including on a miss — PostgreSQL connections are
// serial at the wire level, so this does not lose concurrency that could
// otherwise be exploited (§9 open question: "cache lock granularity").
func (s *Session) fetchCached(ctx context.Context, sql string, paramOIDs []uint32) (*StatementHandle, error) {
	s.cache.Lock()
	defer s.cache.Unlock()

	if h, ok := s.cache.get(sql); ok {
		return h, nil
	}

	desc, err := performIO(ctx, s, func(ctx context.Context) (*statementDescription, error) {
		name := fmt.Sprintf("pgsession_%d", statementCounter.Add(1))
		return s.conn.Prepare(ctx, name, sql, paramOIDs)
	})
	if err != nil {
		return nil, err
	}

	h := &StatementHandle{Name: desc.Name, SQL: sql, ParamOIDs: desc.ParamOIDs, Fields: desc.Fields}
	s.cache.put(sql, h)
	// The cache mutex is already held here, so read the size directly
	// rather than through Len()/Capacity(), which would lock it again.
	size := 0
	if s.cache.lru != nil {
		size = s.cache.lru.Len()
	}
	loggy.Tracef("pgsession | cache | miss sql=%q size=%d capacity=%d", truncateForLog(sql), size, s.cache.capacity)
	return h, nil
}

var statementCounter atomic.Uint64

// isConnectionClosedErr reports whether err looks like the peer closed
// the connection underneath an in-flight operation. pgconn surfaces this
// as io.ErrUnexpectedEOF/io.EOF wrapped in a *pgconn.PgConn error, or the
// connection simply reporting itself closed.
func isConnectionClosedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "closed") || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "EOF")
}

// translateConnectError maps a connection-time failure to a typed
// ConnectorError using the server's reported SQLSTATE when one is
// present (§7: DatabaseDoesNotExist/AuthenticationFailed mapped from
// 3D000/28P01/28000).
func translateConnectError(url *ConnectionURL, err error) error {
	var pgErr *pgconn.PgError
	if asPgError(err, &pgErr) {
		switch pgErr.Code {
		case "3D000":
			return newDatabaseDoesNotExist(url.Dbname(), err)
		case "28P01", "28000":
			return newAuthenticationFailed(url.User(), err)
		default:
			translated := translateSQLState(pgErr.Code, pgErr.Message)
			translated.Cause = err
			return translated
		}
	}
	return &ConnectorError{Kind: ErrKindRaw, Message: err.Error(), Cause: err}
}

func asPgError(err error, target **pgconn.PgError) bool {
	for err != nil {
		if pe, ok := err.(*pgconn.PgError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
