package pgsession

import "time"

// NewConnectionURL builds a ConnectionURL programmatically, pre-seeded
// with the same defaults ParseConnectionURL materializes (§3). Chainable
// setters mirror the teacher's RConf builder: each setter returns the
// receiver so callers compose a configuration fluently instead of
// through a DSN string, which is useful for tests and for callers that
// already hold structured connection parameters.
func NewConnectionURL() *ConnectionURL {
	connectTimeout := DefaultConnectTimeout
	poolTimeout := DefaultPoolTimeout
	maxIdle := DefaultMaxIdleConnectionLifetime
	return &ConnectionURL{
		host:                      DefaultHost,
		port:                      DefaultPort,
		dbname:                    DefaultDatabase,
		statementCacheSize:        DefaultStatementCacheSize,
		sslMode:                   SSLModePrefer,
		sslAcceptMode:             SSLAcceptInvalidCerts,
		channelBinding:            ChannelBindingPrefer,
		connectTimeout:            &connectTimeout,
		poolTimeout:               &poolTimeout,
		maxIdleConnectionLifetime: &maxIdle,
	}
}

func (c *ConnectionURL) WithHost(host string) *ConnectionURL {
	c.host = host
	return c
}

func (c *ConnectionURL) WithPort(port int) *ConnectionURL {
	c.port = port
	return c
}

func (c *ConnectionURL) WithUser(user string) *ConnectionURL {
	c.user = user
	return c
}

func (c *ConnectionURL) WithPassword(password string) *ConnectionURL {
	c.password = password
	return c
}

func (c *ConnectionURL) WithDbname(dbname string) *ConnectionURL {
	c.dbname = dbname
	return c
}

func (c *ConnectionURL) WithSchema(schema string) *ConnectionURL {
	c.schema = schema
	return c
}

func (c *ConnectionURL) WithPgBouncer(on bool) *ConnectionURL {
	c.pgBouncer = on
	return c
}

func (c *ConnectionURL) WithStatementCacheSize(n int) *ConnectionURL {
	c.statementCacheSize = n
	return c
}

func (c *ConnectionURL) WithSSLMode(mode SSLMode) *ConnectionURL {
	c.sslMode = mode
	return c
}

func (c *ConnectionURL) WithSSLAcceptMode(mode SSLAcceptMode) *ConnectionURL {
	c.sslAcceptMode = mode
	return c
}

func (c *ConnectionURL) WithCertificateFile(path string) *ConnectionURL {
	c.certificateFile = path
	return c
}

func (c *ConnectionURL) WithIdentityFile(path string) *ConnectionURL {
	c.identityFile = path
	return c
}

func (c *ConnectionURL) WithIdentityPassword(password string) *ConnectionURL {
	c.identityPassword = password
	return c
}

func (c *ConnectionURL) WithChannelBinding(mode ChannelBindingMode) *ConnectionURL {
	c.channelBinding = mode
	return c
}

func (c *ConnectionURL) WithConnectTimeout(d time.Duration) *ConnectionURL {
	c.connectTimeout = durationPtr(d)
	return c
}

// WithNoConnectTimeout clears the connect timeout, matching the "0"
// sentinel's meaning in the URL grammar.
func (c *ConnectionURL) WithNoConnectTimeout() *ConnectionURL {
	c.connectTimeout = nil
	return c
}

func (c *ConnectionURL) WithPoolTimeout(d time.Duration) *ConnectionURL {
	c.poolTimeout = durationPtr(d)
	return c
}

func (c *ConnectionURL) WithSocketTimeout(d time.Duration) *ConnectionURL {
	c.socketTimeout = durationPtr(d)
	return c
}

func (c *ConnectionURL) WithMaxConnectionLifetime(d time.Duration) *ConnectionURL {
	c.maxConnectionLifetime = durationPtr(d)
	return c
}

func (c *ConnectionURL) WithMaxIdleConnectionLifetime(d time.Duration) *ConnectionURL {
	c.maxIdleConnectionLifetime = durationPtr(d)
	return c
}

func (c *ConnectionURL) WithConnectionLimit(n int) *ConnectionURL {
	c.connectionLimit = &n
	return c
}

func (c *ConnectionURL) WithApplicationName(name string) *ConnectionURL {
	c.applicationName = name
	return c
}

func (c *ConnectionURL) WithOptions(options string) *ConnectionURL {
	c.options = options
	return c
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
