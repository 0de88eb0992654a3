package pgsession

import (
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/sivaosorg/loggy"
)

// queryOptions wraps url.Values with the "last value wins, then mark
// consumed" idiom so that any query pair never inspected by
// ParseConnectionURL is easy to spot: whatever remains in q after parsing
// is, by definition, unrecognized and is discarded with a trace log.
type queryOptions struct {
	q url.Values
}

func (o *queryOptions) string(name string) (string, bool) {
	vs := o.q[name]
	if len(vs) == 0 {
		return "", false
	}
	delete(o.q, name)
	return vs[len(vs)-1], true
}

func (o *queryOptions) int(name string) (int, bool, error) {
	s, ok := o.string(name)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func (o *queryOptions) bool(name string) (bool, bool, error) {
	s, ok := o.string(name)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, true, err
	}
	return b, true, nil
}

// durationSeconds parses a base-10 second count where "0" is the
// explicit "no timeout" sentinel (§3/§4.1), returning a nil *Duration in
// that case.
func (o *queryOptions) durationSeconds(name string) (*time.Duration, bool, error) {
	s, ok := o.string(name)
	if !ok {
		return nil, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, true, err
	}
	if n == 0 {
		return nil, true, nil
	}
	d := time.Duration(n) * time.Second
	return &d, true, nil
}

// ParseConnectionURL translates a postgres://, postgresql:// URL into a
// validated ConnectionURL (§4.1). It performs no I/O: every failure is an
// InvalidConnectionArguments ConnectorError, never a network or
// filesystem error.
func ParseConnectionURL(raw string) (*ConnectionURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newInvalidConnectionArguments("malformed connection url: %v", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, newInvalidConnectionArguments("unsupported scheme %q", u.Scheme)
	}

	opts := &queryOptions{q: u.Query()}
	c := &ConnectionURL{
		host:               DefaultHost,
		port:               DefaultPort,
		dbname:             DefaultDatabase,
		statementCacheSize: DefaultStatementCacheSize,
		sslMode:            SSLModePrefer,
		sslAcceptMode:      SSLAcceptInvalidCerts,
		channelBinding:     ChannelBindingPrefer,
	}

	if u.User != nil {
		c.user = decodeOrWarn("user", u.User.Username())
		if pw, ok := u.User.Password(); ok {
			c.password = decodeOrWarn("password", pw)
		}
	}

	if len(u.Path) > 1 {
		c.dbname = u.Path[1:]
	}

	if h := u.Hostname(); h != "" {
		c.host = h
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			c.port = n
		} else {
			return nil, newInvalidConnectionArguments("invalid port %q", p)
		}
	}

	connectTimeout := DefaultConnectTimeout
	c.connectTimeout = &connectTimeout
	poolTimeout := DefaultPoolTimeout
	c.poolTimeout = &poolTimeout
	maxIdle := DefaultMaxIdleConnectionLifetime
	c.maxIdleConnectionLifetime = &maxIdle

	// host query param wins over the URL host (§3); it is the only way
	// to address a Unix-domain socket path, which net/url cannot parse
	// as a Host component.
	if host, ok := opts.string("host"); ok {
		c.host = host
	}

	if schema, ok := opts.string("schema"); ok {
		c.schema = schema
	}

	if v, present, err := opts.bool("pg_bouncer"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid pg_bouncer value: %v", err)
		}
		c.pgBouncer = v
	}
	if v, present, err := opts.bool("pgbouncer"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid pgbouncer value: %v", err)
		}
		c.pgBouncer = v
	}

	if v, present, err := opts.int("statement_cache_size"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid statement_cache_size: %v", err)
		}
		c.statementCacheSize = v
	}

	if v, ok := opts.string("sslmode"); ok {
		switch v {
		case string(SSLModeDisable):
			c.sslMode = SSLModeDisable
		case string(SSLModePrefer):
			c.sslMode = SSLModePrefer
		case string(SSLModeRequire):
			c.sslMode = SSLModeRequire
		default:
			loggy.Warnf("pgsession | url | unknown sslmode %q, keeping prefer", v)
			c.sslMode = SSLModePrefer
		}
	}

	if v, ok := opts.string("sslaccept"); ok {
		switch v {
		case string(SSLAcceptStrict):
			c.sslAcceptMode = SSLAcceptStrict
		case string(SSLAcceptInvalidCerts):
			c.sslAcceptMode = SSLAcceptInvalidCerts
		default:
			loggy.Warnf("pgsession | url | unknown sslaccept %q, coercing to strict", v)
			c.sslAcceptMode = SSLAcceptStrict
		}
	}

	if v, ok := opts.string("sslcert"); ok {
		c.certificateFile = v
	}
	if v, ok := opts.string("sslidentity"); ok {
		c.identityFile = v
	}
	if v, ok := opts.string("sslpassword"); ok {
		c.identityPassword = v
	}

	if v, ok := opts.string("channel_binding"); ok {
		switch v {
		case string(ChannelBindingDisable):
			c.channelBinding = ChannelBindingDisable
		case string(ChannelBindingPrefer):
			c.channelBinding = ChannelBindingPrefer
		case string(ChannelBindingRequire):
			c.channelBinding = ChannelBindingRequire
		default:
			loggy.Warnf("pgsession | url | unknown channel_binding %q, keeping prefer", v)
			c.channelBinding = ChannelBindingPrefer
		}
	}

	if d, present, err := opts.durationSeconds("connect_timeout"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid connect_timeout: %v", err)
		}
		c.connectTimeout = d
	}
	if d, present, err := opts.durationSeconds("pool_timeout"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid pool_timeout: %v", err)
		}
		c.poolTimeout = d
	}
	if d, present, err := opts.durationSeconds("socket_timeout"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid socket_timeout: %v", err)
		}
		c.socketTimeout = d
	}
	if d, present, err := opts.durationSeconds("max_connection_lifetime"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid max_connection_lifetime: %v", err)
		}
		c.maxConnectionLifetime = d
	}
	if d, present, err := opts.durationSeconds("max_idle_connection_lifetime"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid max_idle_connection_lifetime: %v", err)
		}
		c.maxIdleConnectionLifetime = d
	}
	if n, present, err := opts.int("connection_limit"); present {
		if err != nil {
			return nil, newInvalidConnectionArguments("invalid connection_limit: %v", err)
		}
		c.connectionLimit = &n
	}

	if v, ok := opts.string("application_name"); ok {
		c.applicationName = v
	}
	if v, ok := opts.string("options"); ok {
		c.options = v
	}

	for k := range opts.q {
		loggy.Tracef("pgsession | url | discarding unrecognized query parameter %q", k)
	}

	return c, nil
}

// decodeOrWarn receives a user-info component that net/url has already
// percent-decoded (Username()/Password() decode eagerly) and returns it
// unchanged, logging a warning when the decoded bytes are not valid
// UTF-8. A component with an invalid escape sequence never reaches it:
// url.Parse rejects the whole URL, so ParseConnectionURL fails with
// InvalidConnectionArguments instead of falling back to the raw text.
func decodeOrWarn(field, value string) string {
	if !utf8.ValidString(value) {
		loggy.Warnf("pgsession | url | %s is not valid UTF-8 after percent-decoding, using the raw bytes", field)
	}
	return value
}

// Accessors mirror the field table of §3. They only read; the With*
// setters in builder.go are what modify a ConnectionURL.

func (c *ConnectionURL) Host() string     { return c.host }
func (c *ConnectionURL) Port() int        { return c.port }
func (c *ConnectionURL) User() string     { return c.user }
func (c *ConnectionURL) Password() string { return c.password }
func (c *ConnectionURL) Dbname() string   { return c.dbname }

// Schema returns the configured schema, defaulting to "public" at this
// use site per §3 ("unset → public at use site").
func (c *ConnectionURL) Schema() string {
	if isEmpty(c.schema) {
		return DefaultSchema
	}
	return c.schema
}

// RawSchema returns the schema exactly as configured, empty when unset —
// used by the session-init builder to distinguish "no SET search_path"
// from an explicit "public".
func (c *ConnectionURL) RawSchema() string { return c.schema }

func (c *ConnectionURL) PgBouncer() bool            { return c.pgBouncer }
func (c *ConnectionURL) StatementCacheSize() int    { return c.statementCacheSize }
func (c *ConnectionURL) SSLMode() SSLMode           { return c.sslMode }
func (c *ConnectionURL) SSLAcceptMode() SSLAcceptMode { return c.sslAcceptMode }
func (c *ConnectionURL) CertificateFile() string    { return c.certificateFile }
func (c *ConnectionURL) IdentityFile() string       { return c.identityFile }

// IdentityPassword is intentionally omitted from any String()/debug
// rendering of ConnectionURL (§3: "secret fields never appear in debug
// rendering").
func (c *ConnectionURL) IdentityPassword() string { return c.identityPassword }

func (c *ConnectionURL) ChannelBinding() ChannelBindingMode { return c.channelBinding }
func (c *ConnectionURL) ConnectTimeout() *time.Duration     { return c.connectTimeout }
func (c *ConnectionURL) PoolTimeout() *time.Duration        { return c.poolTimeout }
func (c *ConnectionURL) SocketTimeout() *time.Duration      { return c.socketTimeout }
func (c *ConnectionURL) MaxConnectionLifetime() *time.Duration {
	return c.maxConnectionLifetime
}
func (c *ConnectionURL) MaxIdleConnectionLifetime() *time.Duration {
	return c.maxIdleConnectionLifetime
}
func (c *ConnectionURL) ConnectionLimit() *int    { return c.connectionLimit }
func (c *ConnectionURL) ApplicationName() string  { return c.applicationName }
func (c *ConnectionURL) Options() string          { return c.options }

// CacheCapacity returns the statement-cache capacity this URL implies:
// StatementCacheSize, forced to 0 when PgBouncer is set (§4.1 "cache()").
func (c *ConnectionURL) CacheCapacity() int {
	if c.pgBouncer {
		return 0
	}
	return c.statementCacheSize
}

// Cache builds a fresh StatementCache sized per CacheCapacity.
func (c *ConnectionURL) Cache() (*StatementCache, error) {
	return newStatementCache(c.CacheCapacity())
}

// String renders a debug form with every secret field redacted, matching
// the teacher's own convention (RConf getters never expose Password
// directly in builder.go's prior String-rendering helpers).
func (c *ConnectionURL) String() string {
	return "ConnectionURL{host=" + c.host + ", port=" + strconv.Itoa(c.port) +
		", dbname=" + c.dbname + ", user=" + c.user +
		", password=<redacted>, identity_password=<redacted>}"
}
