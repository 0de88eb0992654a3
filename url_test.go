package pgsession

import "testing"

func TestParseConnectionURL_UnixSocketHostParam(t *testing.T) {
	c, err := ParseConnectionURL("postgresql:///dbname?host=/var/run/psql.sock")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Dbname() != "dbname" {
		t.Errorf("Dbname() = %q, want %q", c.Dbname(), "dbname")
	}
	if c.Host() != "/var/run/psql.sock" {
		t.Errorf("Host() = %q, want %q", c.Host(), "/var/run/psql.sock")
	}
}

func TestParseConnectionURL_PercentEncodedHost(t *testing.T) {
	c, err := ParseConnectionURL("postgresql:///dbname?host=%2Fvar%2Frun%2Fpostgresql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Host() != "/var/run/postgresql" {
		t.Errorf("Host() = %q, want %q", c.Host(), "/var/run/postgresql")
	}
}

func TestParseConnectionURL_StatementCacheSize(t *testing.T) {
	c, err := ParseConnectionURL("postgresql://localhost:5432/foo?statement_cache_size=420")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cache, err := c.Cache()
	if err != nil {
		t.Fatalf("unexpected error building cache: %v", err)
	}
	if got := cache.Capacity(); got != 420 {
		t.Errorf("cache capacity = %d, want 420", got)
	}
}

func TestParseConnectionURL_PgBouncerForcesCacheCapacityZero(t *testing.T) {
	c, err := ParseConnectionURL("postgresql://localhost:5432/foo?pgbouncer=true")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.CacheCapacity(); got != 0 {
		t.Errorf("CacheCapacity() = %d, want 0", got)
	}
	cache, err := c.Cache()
	if err != nil {
		t.Fatalf("unexpected error building cache: %v", err)
	}
	if got := cache.Capacity(); got != 0 {
		t.Errorf("cache.Capacity() = %d, want 0", got)
	}
}

func TestParseConnectionURL_UnknownChannelBindingRetainsPrefer(t *testing.T) {
	c, err := ParseConnectionURL("postgresql://localhost:5432/foo?channel_binding=invalid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ChannelBinding() != ChannelBindingPrefer {
		t.Errorf("ChannelBinding() = %v, want %v", c.ChannelBinding(), ChannelBindingPrefer)
	}
}

func TestParseConnectionURL_OptionsPercentDecoded(t *testing.T) {
	c, err := ParseConnectionURL("postgresql://localhost:5432?options=--cluster%3Dmy_cluster")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Options() != "--cluster=my_cluster" {
		t.Errorf("Options() = %q, want %q", c.Options(), "--cluster=my_cluster")
	}
}

func TestParseConnectionURL_Defaults(t *testing.T) {
	c, err := ParseConnectionURL("postgresql://localhost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", c.Port(), DefaultPort)
	}
	if c.Dbname() != DefaultDatabase {
		t.Errorf("Dbname() = %q, want %q", c.Dbname(), DefaultDatabase)
	}
	if c.Schema() != DefaultSchema {
		t.Errorf("Schema() = %q, want %q", c.Schema(), DefaultSchema)
	}
	if c.SSLMode() != SSLModePrefer {
		t.Errorf("SSLMode() = %v, want %v", c.SSLMode(), SSLModePrefer)
	}
}

func TestParseConnectionURL_InvalidPortFails(t *testing.T) {
	_, err := ParseConnectionURL("postgresql://localhost:notaport/foo")
	if err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
	var ce *ConnectorError
	if !isConnectorError(err, &ce) {
		t.Fatalf("expected a *ConnectorError, got %T", err)
	}
	if ce.Kind != ErrKindInvalidConnectionArguments {
		t.Errorf("Kind = %v, want %v", ce.Kind, ErrKindInvalidConnectionArguments)
	}
}

func TestParseConnectionURL_InvalidStatementCacheSizeFails(t *testing.T) {
	_, err := ParseConnectionURL("postgresql://localhost/foo?statement_cache_size=not-a-number")
	if err == nil {
		t.Fatal("expected an error for a non-numeric statement_cache_size")
	}
}

func TestParseConnectionURL_ZeroConnectTimeoutMeansNone(t *testing.T) {
	c, err := ParseConnectionURL("postgresql://localhost/foo?connect_timeout=0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ConnectTimeout() != nil {
		t.Errorf("ConnectTimeout() = %v, want nil", c.ConnectTimeout())
	}
}

func TestParseConnectionURL_UnsupportedScheme(t *testing.T) {
	_, err := ParseConnectionURL("mysql://localhost/foo")
	if err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}

func isConnectorError(err error, target **ConnectorError) bool {
	ce, ok := err.(*ConnectorError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
