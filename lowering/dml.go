package lowering

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/invocation"
	"github.com/sqlmongo/translator/xerrors"
)

func (e *Engine) lowerInsert(stmt ast.Statement) (*invocation.Invocation, error) {
	sc := newScope(stmt.InsertTable, "")
	docs := make([]bson.M, 0, len(stmt.InsertRows))
	for _, row := range stmt.InsertRows {
		if len(stmt.InsertColumns) > 0 && len(row) != len(stmt.InsertColumns) {
			return nil, xerrors.New(xerrors.UnsupportedArgument, "INSERT column count does not match value count")
		}
		doc := bson.M{}
		lw := &exprLowerer{cat: e.cat, sc: sc}
		for i, v := range row {
			val, err := lw.lower(v)
			if err != nil {
				return nil, err
			}
			name := ""
			if i < len(stmt.InsertColumns) {
				name = stmt.InsertColumns[i]
			} else {
				return nil, xerrors.New(xerrors.UnsupportedArgument, "INSERT without a column list must supply one per document field")
			}
			doc[name] = val
		}
		docs = append(docs, doc)
	}

	inv := &invocation.Invocation{Collection: collectionName(stmt.InsertTable)}
	if len(docs) == 1 {
		inv.Op = invocation.OpInsertOne
		inv.Document = docs[0]
	} else {
		inv.Op = invocation.OpInsertMany
		inv.Documents = docs
	}
	return inv, nil
}

func (e *Engine) lowerUpdate(stmt ast.Statement) (*invocation.Invocation, error) {
	sc := newScope(stmt.UpdateTable, "")
	set := bson.M{}
	lw := &exprLowerer{cat: e.cat, sc: sc}
	for _, a := range stmt.UpdateAssignments {
		v, err := lw.lower(a.Expr)
		if err != nil {
			return nil, err
		}
		set[a.Column.Name] = v
	}

	inv := &invocation.Invocation{Collection: collectionName(stmt.UpdateTable), Op: invocation.OpUpdateMany}
	filter, err := e.lowerWhereFilter(stmt.UpdateWhere, sc)
	if err != nil {
		return nil, err
	}
	inv.Filter = filter
	inv.Update = bson.M{"$set": set}
	return inv, nil
}

func (e *Engine) lowerDelete(stmt ast.Statement) (*invocation.Invocation, error) {
	sc := newScope(stmt.DeleteTable, "")
	inv := &invocation.Invocation{Collection: collectionName(stmt.DeleteTable), Op: invocation.OpDeleteMany}
	filter, err := e.lowerWhereFilter(stmt.DeleteWhere, sc)
	if err != nil {
		return nil, err
	}
	inv.Filter = filter
	return inv, nil
}

// lowerWhereFilter lowers an UPDATE/DELETE WHERE clause. Subqueries are not
// supported here: MongoDB's updateMany/deleteMany take a plain filter
// document, not a pipeline, so there is nowhere to splice a $lookup stage.
func (e *Engine) lowerWhereFilter(where *ast.Expression, sc *scope) (bson.M, error) {
	if where == nil {
		return bson.M{}, nil
	}
	sl := &subqueryCollector{engine: e}
	rewritten, err := sl.extract(*where, sc)
	if err != nil {
		return nil, err
	}
	if len(sl.preStages) > 0 {
		return nil, xerrors.New(xerrors.UnsupportedConstruct, "UPDATE/DELETE WHERE clauses cannot contain subqueries")
	}
	if native, ok := lowerNativeFilter(rewritten, sc); ok {
		return native, nil
	}
	lw := &exprLowerer{cat: e.cat, sc: sc}
	v, err := lw.lower(rewritten)
	if err != nil {
		return nil, err
	}
	return bson.M{"$expr": v}, nil
}

// lowerWith materialises each non-recursive CTE by substituting it, wherever
// the body's FROM or JOIN targets name it, with a derived-table TableRef
// wrapping the CTE's own SelectStatement — exactly the shape a subquery in
// FROM already lowers to ($lookup chained into the body's pipeline,
// replacing the body's base collection when the CTE is the body's own FROM
// target). A CTE name used elsewhere in the body, such as inside a WHERE
// subquery, is not substituted. Every recursive CTE is reported as
// UnsupportedCTE; no $graphLookup lowering is attempted.
func (e *Engine) lowerWith(stmt ast.Statement) (*invocation.Invocation, error) {
	ctes := map[string]*ast.SelectStatement{}
	for i := range stmt.CTEs {
		cte := stmt.CTEs[i]
		if cte.Recursive {
			return nil, xerrors.New(xerrors.UnsupportedCTE, "recursive CTEs are only supported via a single self-referential equi-join, which requires dedicated $graphLookup wiring not present for "+cte.Name)
		}
		ctes[cte.Name] = &cte.Query
	}
	if stmt.Body.Kind != ast.StmtSelect {
		return nil, xerrors.New(xerrors.UnsupportedCTE, "WITH is only supported ahead of a SELECT body")
	}
	body := *stmt.Body.Select
	substituteCTEs(&body, ctes)
	return e.lowerSelectStatement(&body)
}

func substituteCTEs(stmt *ast.SelectStatement, ctes map[string]*ast.SelectStatement) {
	if cte, ok := ctes[stmt.From.Name]; ok && stmt.From.Derived == nil {
		alias := stmt.From.Alias
		if alias == "" {
			alias = stmt.From.Name
		}
		stmt.From = ast.TableRef{Alias: alias, Derived: cte}
	}
	for i, j := range stmt.Joins {
		if cte, ok := ctes[j.Target.Name]; ok && j.Target.Derived == nil {
			alias := j.Target.Alias
			if alias == "" {
				alias = j.Target.Name
			}
			stmt.Joins[i].Target = ast.TableRef{Alias: alias, Derived: cte}
		}
	}
}
