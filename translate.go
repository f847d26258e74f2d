// Package translator is the public entry point for the SQL-to-MongoDB
// query translator: Translate and TranslateMany turn MariaDB-dialect SQL
// text into invocation.Invocation values a MongoDB driver can execute
// directly, with no client- or server-side evaluation in between.
package translator

import (
	"github.com/sqlmongo/translator/invocation"
	"github.com/sqlmongo/translator/lowering"
	"github.com/sqlmongo/translator/parser"
)

// Translate parses and lowers a single SQL statement against database,
// using opts to control collation, implicit ordering and reserved-word
// handling. database is currently only metadata for the caller; the
// translator does not multiplex across MongoDB client connections.
func Translate(sql, database string, opts invocation.Options) (*invocation.Invocation, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	inv, err := lowering.NewEngine(opts).Lower(*stmt)
	if err != nil {
		return nil, err
	}
	inv.Database = database
	return inv, nil
}

// TranslateMany parses and lowers every statement in a semicolon-separated
// batch. Translation is all-or-nothing per statement: when a statement
// fails to lower, its error is returned alongside the invocations of the
// statements before it, so a caller running a batch can decide whether to
// apply the prefix or discard it. The error does not name the statement;
// its 0-based index is the length of the returned prefix. A parse error
// anywhere in the batch returns no invocations, only the error.
func TranslateMany(sql, database string, opts invocation.Options) ([]*invocation.Invocation, error) {
	stmts, err := parser.ParseMany(sql)
	if err != nil {
		return nil, err
	}
	engine := lowering.NewEngine(opts)
	out := make([]*invocation.Invocation, 0, len(stmts))
	for _, stmt := range stmts {
		inv, err := engine.Lower(*stmt)
		if err != nil {
			return out, err
		}
		inv.Database = database
		out = append(out, inv)
	}
	return out, nil
}
