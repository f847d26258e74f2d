// Package env reads the MongoDB connection configuration from the process
// environment, per the translator's documented driver-glue variables.
// These are consumed by cmd/sqlmongo; the translator core itself never
// reads the environment.
package env

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	MongoHost         = "MONGO_HOST"
	MongoPort         = "MONGO_PORT"
	MongoUsername     = "MONGO_USERNAME"
	MongoPassword     = "MONGO_PASSWORD"
	MongoAuthDatabase = "MONGO_AUTH_DATABASE"
	MongoDatabase     = "MONGO_DATABASE"
	MongoSSL          = "MONGODB_SSL"
	MongoTimeout      = "MONGODB_TIMEOUT"
	MongoAppName      = "MONGO_APP_NAME"
	MongoRetryWrites  = "MONGO_RETRY_WRITES"
	MongoWriteConcern = "MONGO_WRITE_CONCERN"
)

// Connection is the resolved set of driver-glue settings needed to dial
// MongoDB and pick a default database.
type Connection struct {
	Host          string
	Port          string
	Username      string
	Password      string
	AuthDatabase  string
	Database      string
	SSL           bool
	Timeout       time.Duration
	AppName       string
	RetryWrites   bool
	WriteConcern  string
}

// LoadConnection reads every MONGO_*/MONGODB_* variable, applying the
// documented defaults for anything unset.
func LoadConnection() Connection {
	return Connection{
		Host:         str(MongoHost, "localhost"),
		Port:         str(MongoPort, "27017"),
		Username:     str(MongoUsername, ""),
		Password:     str(MongoPassword, ""),
		AuthDatabase: str(MongoAuthDatabase, "admin"),
		Database:     str(MongoDatabase, ""),
		SSL:          boolean(MongoSSL, false),
		Timeout:      duration(MongoTimeout, 10*time.Second),
		AppName:      str(MongoAppName, "sqlmongo"),
		RetryWrites:  boolean(MongoRetryWrites, true),
		WriteConcern: str(MongoWriteConcern, "majority"),
	}
}

// URI builds a mongodb:// connection string from the resolved connection
// settings.
func (c Connection) URI() string {
	scheme := "mongodb"
	auth := ""
	if c.Username != "" {
		auth = c.Username + ":" + c.Password + "@"
	}
	uri := fmt.Sprintf("%s://%s%s:%s/?retryWrites=%t&w=%s", scheme, auth, c.Host, c.Port, c.RetryWrites, c.WriteConcern)
	if c.Username != "" {
		uri += "&authSource=" + c.AuthDatabase
	}
	if c.SSL {
		uri += "&tls=true"
	}
	uri += "&appName=" + c.AppName
	return uri
}

func str(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func boolean(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func duration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(seconds) * time.Second
}
