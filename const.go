package pgsession

import "time"

// MaxBindParameters is the PostgreSQL wire-protocol limit on the number of
// bind parameters a single prepared statement may carry. Exceeding it is
// rejected before any network I/O occurs.
const MaxBindParameters = 32767

// Default values materialized by the URL parser (§3/§4.1) when the
// corresponding query parameter is absent.
const (
	DefaultHost                     = "localhost"
	DefaultPort                     = 5432
	DefaultDatabase                 = "postgres"
	DefaultSchema                   = "public"
	DefaultStatementCacheSize       = 100
	DefaultConnectTimeout           = 5 * time.Second
	DefaultPoolTimeout              = 10 * time.Second
	DefaultMaxIdleConnectionLifetime = 300 * time.Second
)

// SSLMode selects whether and how the session requests an encrypted
// connection to the server.
type SSLMode string

const (
	// SSLModeDisable never attempts TLS.
	SSLModeDisable SSLMode = "disable"
	// SSLModePrefer attempts TLS but falls back to plaintext if the
	// TLS attempt fails. Default.
	SSLModePrefer SSLMode = "prefer"
	// SSLModeRequire insists on TLS; the session fails to connect if the
	// server cannot provide it.
	SSLModeRequire SSLMode = "require"
)

// String returns the wire-level string form of the mode.
func (m SSLMode) String() string {
	return string(m)
}

// SSLAcceptMode governs how strictly the TLS Materializer verifies the
// server's certificate.
type SSLAcceptMode string

const (
	// SSLAcceptStrict performs full certificate-chain and hostname
	// verification.
	SSLAcceptStrict SSLAcceptMode = "strict"
	// SSLAcceptInvalidCerts skips certificate verification entirely.
	// Default — matches the source's "accept_invalid_certs" default,
	// which favors compatibility with self-signed deployments.
	SSLAcceptInvalidCerts SSLAcceptMode = "accept_invalid_certs"
)

// String returns the wire-level string form of the accept mode.
func (m SSLAcceptMode) String() string {
	return string(m)
}

// ChannelBindingMode selects whether SCRAM authentication is bound to the
// TLS channel it rides on.
type ChannelBindingMode string

const (
	ChannelBindingDisable ChannelBindingMode = "disable"
	ChannelBindingPrefer  ChannelBindingMode = "prefer"
	ChannelBindingRequire ChannelBindingMode = "require"
)

// String returns the wire-level string form of the channel binding mode.
func (m ChannelBindingMode) String() string {
	return string(m)
}

// IsolationLevel names a SQL transaction isolation level. Snapshot has no
// PostgreSQL equivalent and is rejected by SetTxIsolationLevel.
type IsolationLevel string

const (
	IsolationLevelReadUncommitted IsolationLevel = "READ UNCOMMITTED"
	IsolationLevelReadCommitted   IsolationLevel = "READ COMMITTED"
	IsolationLevelRepeatableRead  IsolationLevel = "REPEATABLE READ"
	IsolationLevelSerializable    IsolationLevel = "SERIALIZABLE"
	IsolationLevelSnapshot        IsolationLevel = "SNAPSHOT"
)

// String returns the SQL keyword form of the isolation level.
func (l IsolationLevel) String() string {
	return string(l)
}
