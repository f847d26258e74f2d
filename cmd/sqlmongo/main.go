// Command sqlmongo is the reference CLI wrapper around the translator
// core: it reads SQL, translates it to a MongoDB invocation, and (unless
// given an unreachable database) executes it and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sqlmongo/translator"
	"github.com/sqlmongo/translator/internal/env"
	"github.com/sqlmongo/translator/internal/mongoexec"
	"github.com/sqlmongo/translator/internal/tableprint"
	"github.com/sqlmongo/translator/invocation"
	"github.com/sqlmongo/translator/xerrors"
)

const (
	exitOK             = 0
	exitTranslateError = 1
	exitDatabaseError  = 2
	exitUsageError     = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sqlmongo", flag.ContinueOnError)
	statement := fs.String("e", "", "execute one SQL statement and exit")
	batch := fs.Bool("batch", false, "treat -e input as a semicolon-delimited batch, print JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "usage: sqlmongo <database> [-e \"SQL\"] [--batch]")
		return exitUsageError
	}
	database := rest[0]

	if *statement == "" {
		fmt.Fprintln(os.Stderr, "sqlmongo: interactive mode is not part of the core; pass -e")
		return exitUsageError
	}

	opts := invocation.DefaultOptions()

	client, dbErr := connect(context.Background())
	if dbErr != nil {
		fmt.Fprintf(os.Stderr, "sqlmongo: database error: %v\n", dbErr)
		return exitDatabaseError
	}
	defer client.Disconnect(context.Background())
	db := client.Database(database)

	if *batch {
		return runBatch(db, *statement, database, opts)
	}
	return runOne(db, *statement, database, opts)
}

func connect(ctx context.Context) (*mongo.Client, error) {
	conn := env.LoadConnection()
	ctx, cancel := context.WithTimeout(ctx, conn.Timeout)
	defer cancel()
	return mongo.Connect(ctx, options.Client().ApplyURI(conn.URI()))
}

func runOne(db *mongo.Database, sql, database string, opts invocation.Options) int {
	inv, err := translator.Translate(sql, database, opts)
	if err != nil {
		printTranslateError(err)
		return exitTranslateError
	}
	rows, err := mongoexec.Run(context.Background(), db, inv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqlmongo: database error: %v\n", err)
		return exitDatabaseError
	}
	tableprint.Table(os.Stdout, rows)
	return exitOK
}

func runBatch(db *mongo.Database, sql, database string, opts invocation.Options) int {
	invs, err := translator.TranslateMany(sql, database, opts)
	if err != nil {
		printTranslateError(err)
		return exitTranslateError
	}
	var allRows []map[string]any
	for _, inv := range invs {
		rows, err := mongoexec.Run(context.Background(), db, inv)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlmongo: database error: %v\n", err)
			return exitDatabaseError
		}
		allRows = append(allRows, rows...)
	}
	if err := tableprint.JSON(os.Stdout, allRows); err != nil {
		fmt.Fprintf(os.Stderr, "sqlmongo: output error: %v\n", err)
		return exitDatabaseError
	}
	return exitOK
}

func printTranslateError(err error) {
	if xe, ok := err.(*xerrors.Error); ok {
		fmt.Fprintf(os.Stderr, "sqlmongo: %s: %s\n", xe.Kind, xe.Message)
		if xe.Hint != "" {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", xe.Hint)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "sqlmongo:", strings.TrimSpace(err.Error()))
}
