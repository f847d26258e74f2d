package env

import (
	"testing"
	"time"
)

func TestLoadConnectionAppliesDefaultsWhenUnset(t *testing.T) {
	for _, k := range []string{MongoHost, MongoPort, MongoUsername, MongoPassword, MongoAuthDatabase,
		MongoDatabase, MongoSSL, MongoTimeout, MongoAppName, MongoRetryWrites, MongoWriteConcern} {
		t.Setenv(k, "")
	}
	c := LoadConnection()
	if c.Host != "localhost" || c.Port != "27017" || c.AuthDatabase != "admin" {
		t.Fatalf("defaults = %+v", c)
	}
	if c.SSL {
		t.Error("SSL should default to false")
	}
	if c.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", c.Timeout)
	}
	if !c.RetryWrites {
		t.Error("RetryWrites should default to true")
	}
	if c.WriteConcern != "majority" {
		t.Errorf("WriteConcern = %q, want majority", c.WriteConcern)
	}
}

func TestLoadConnectionReadsOverrides(t *testing.T) {
	t.Setenv(MongoHost, "mongo.internal")
	t.Setenv(MongoPort, "27018")
	t.Setenv(MongoSSL, "true")
	t.Setenv(MongoTimeout, "5")
	c := LoadConnection()
	if c.Host != "mongo.internal" || c.Port != "27018" {
		t.Fatalf("overrides = %+v", c)
	}
	if !c.SSL {
		t.Error("SSL override not applied")
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
}

func TestURIIncludesAuthSourceOnlyWithCredentials(t *testing.T) {
	anon := Connection{Host: "localhost", Port: "27017", RetryWrites: true, WriteConcern: "majority", AppName: "sqlmongo"}
	if got := anon.URI(); contains(got, "authSource") {
		t.Errorf("anonymous URI should not carry authSource: %s", got)
	}

	authed := anon
	authed.Username, authed.Password, authed.AuthDatabase = "app", "secret", "admin"
	got := authed.URI()
	if !contains(got, "authSource=admin") {
		t.Errorf("authed URI missing authSource: %s", got)
	}
	if !contains(got, "app:secret@localhost") {
		t.Errorf("authed URI missing credentials: %s", got)
	}
}

func TestURIIncludesTLSOnlyWhenSSLEnabled(t *testing.T) {
	c := Connection{Host: "localhost", Port: "27017", RetryWrites: true, WriteConcern: "majority", AppName: "sqlmongo", SSL: true}
	if got := c.URI(); !contains(got, "tls=true") {
		t.Errorf("SSL URI missing tls=true: %s", got)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
