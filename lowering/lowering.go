// Package lowering turns a parsed Statement IR into a fully-formed MongoDB
// Invocation: the deterministic assembly stage described by the
// translator's lowering engine, consuming the function catalogue to turn
// SQL function calls into native aggregation expressions.
package lowering

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/catalog"
	"github.com/sqlmongo/translator/invocation"
	"github.com/sqlmongo/translator/xerrors"
)

// Engine lowers Statement IR into an Invocation using a fixed function
// catalogue and a set of translation options. It holds no per-statement
// state; a single Engine value is reused across statements by
// TranslateMany.
type Engine struct {
	cat  *catalog.Catalog
	opts invocation.Options
}

// NewEngine builds a lowering engine with the given options and a freshly
// built function catalogue.
func NewEngine(opts invocation.Options) *Engine {
	return &Engine{cat: catalog.New(), opts: opts}
}

// Lower dispatches on the statement kind and produces the corresponding
// Invocation.
func (e *Engine) Lower(stmt ast.Statement) (*invocation.Invocation, error) {
	switch stmt.Kind {
	case ast.StmtSelect:
		return e.lowerSelectStatement(stmt.Select)
	case ast.StmtInsert:
		return e.lowerInsert(stmt)
	case ast.StmtUpdate:
		return e.lowerUpdate(stmt)
	case ast.StmtDelete:
		return e.lowerDelete(stmt)
	case ast.StmtWith:
		return e.lowerWith(stmt)
	}
	return nil, xerrors.New(xerrors.UnsupportedConstruct, "unsupported statement kind")
}

// targetCollection resolves the base collection name a SelectStatement
// reads from, following inflection naming.
func (e *Engine) targetCollection(stmt *ast.SelectStatement) string {
	if stmt.From.Derived != nil {
		// The caller must have already materialised the derived table into
		// its own pipeline; this path is only reached for a named FROM.
		return ""
	}
	return collectionName(stmt.From.Name)
}

// lowerCorrelatedSubPipeline lowers a subquery's SelectStatement into the
// stage list used inside a $lookup.pipeline, threading the enclosing
// scope so correlated column references resolve to $$let-bound
// variables instead of UnresolvedIdentifier.
func (e *Engine) lowerCorrelatedSubPipeline(stmt *ast.SelectStatement, outer *scope) ([]bson.D, bson.M, error) {
	sc := newScope(stmt.From.Name, stmt.From.Alias)
	sc.outer = outer
	lets := bson.M{}

	var stages []bson.D

	if stmt.Where != nil {
		sl := &subqueryCollector{engine: e}
		matchExpr, err := sl.extract(*stmt.Where, sc)
		if err != nil {
			return nil, nil, err
		}
		stages = append(stages, sl.preStages...)
		lw := &exprLowerer{cat: e.cat, sc: sc, lets: lets}
		exprLowered, err := lw.lower(matchExpr)
		if err != nil {
			return nil, nil, err
		}
		stages = append(stages, bson.D{{Key: "$match", Value: bson.M{"$expr": exprLowered}}})
	}
	projStage, err := e.projectionStage(stmt, sc)
	if err != nil {
		return nil, nil, err
	}
	if projStage != nil {
		stages = append(stages, projStage)
	}
	if stmt.Limit != nil {
		stages = append(stages, bson.D{{Key: "$limit", Value: *stmt.Limit}})
	}
	return stages, lets, nil
}

