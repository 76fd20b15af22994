package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// ConfigureConnection applies pool settings for the driver
	ConfigureConnection(db *sql.DB, config DialectConfig) error

	// MigrationsSubdir returns the embedded migrations directory for this dialect
	MigrationsSubdir() string

	// GooseDialect returns the dialect name goose expects
	GooseDialect() string

	// IsUniqueViolation reports whether err is a unique or primary key constraint failure
	IsUniqueViolation(err error) bool

	// LockClause returns the suffix that locks selected rows until the transaction ends
	LockClause() string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
