package lowering

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/invocation"
	"github.com/sqlmongo/translator/xerrors"
)

func (e *Engine) lowerSelectStatement(stmt *ast.SelectStatement) (*invocation.Invocation, error) {
	if stmt.From.Derived != nil {
		return e.lowerAggregate(stmt)
	}
	if e.canUseFind(stmt) {
		return e.lowerFind(stmt)
	}
	return e.lowerAggregate(stmt)
}

// canUseFind reports whether stmt is simple enough to lower to a native
// find() call: no joins, no grouping, no derived FROM, and projections
// that are plain columns or *, which is all a find projection document
// can express.
func (e *Engine) canUseFind(stmt *ast.SelectStatement) bool {
	if len(stmt.Joins) > 0 || len(stmt.GroupBy) > 0 || stmt.Having != nil || stmt.Distinct {
		return false
	}
	for _, p := range stmt.Projections {
		switch p.Expr.Kind {
		case ast.ExprColumn, ast.ExprStar:
			continue
		default:
			return false
		}
	}
	return true
}

func (e *Engine) lowerFind(stmt *ast.SelectStatement) (*invocation.Invocation, error) {
	sc := newScope(stmt.From.Name, stmt.From.Alias)
	inv := &invocation.Invocation{Collection: collectionName(stmt.From.Name), Op: invocation.OpFind}

	if stmt.Where != nil {
		sl := &subqueryCollector{engine: e}
		rewritten, err := sl.extract(*stmt.Where, sc)
		if err != nil {
			return nil, err
		}
		if len(sl.preStages) > 0 {
			// A subquery forced at least one $lookup; find() cannot express
			// that, fall back to the aggregate path with the rewritten tree.
			stmt2 := *stmt
			stmt2.Where = &rewritten
			return e.lowerAggregateWithPreStages(&stmt2, sl.preStages, sc)
		}
		if native, ok := lowerNativeFilter(rewritten, sc); ok {
			inv.Filter = native
		} else {
			lw := &exprLowerer{cat: e.cat, sc: sc}
			v, err := lw.lower(rewritten)
			if err != nil {
				return nil, err
			}
			inv.Filter = bson.M{"$expr": v}
		}
	}

	inv.Projection = findProjection(stmt.Projections, sc)

	if len(stmt.OrderBy) > 0 {
		orderBy, err := resolveOrderByPositions(stmt.OrderBy, stmt.Projections)
		if err != nil {
			return nil, err
		}
		sort, err := lowerSort(orderBy, sc)
		if err != nil {
			return nil, err
		}
		inv.Sort = sort
	} else if stmt.Limit != nil && e.opts.ImplicitOrderOnLimit {
		inv.Sort = implicitOrderShim(stmt.From)
	}
	if stmt.Offset != nil {
		inv.Skip = stmt.Offset
	}
	if stmt.Limit != nil {
		inv.Limit = stmt.Limit
	}
	coll := e.opts.Collation
	inv.Collation = &coll
	return inv, nil
}

func findProjection(projections []ast.Projection, sc *scope) bson.M {
	for _, p := range projections {
		if p.Expr.Kind == ast.ExprStar {
			return nil
		}
	}
	proj := bson.M{"_id": 0}
	for _, p := range projections {
		proj[sc.fieldPath(p.Expr.Column)] = 1
	}
	return proj
}

// implicitOrderShim is the deterministic ordering applied when a query has
// LIMIT/OFFSET but no explicit ORDER BY: MongoDB makes no ordering
// guarantee for an unsorted cursor, so a stable tertiary sort on _id is
// added to keep repeated runs of the same LIMIT query deterministic.
func implicitOrderShim(_ ast.TableRef) bson.M {
	return bson.M{"_id": 1}
}

func lowerSort(items []ast.OrderItem, sc *scope) (bson.M, error) {
	sort := bson.M{}
	for _, it := range items {
		if it.Expr.Kind != ast.ExprColumn {
			return nil, xerrors.New(xerrors.UnsupportedConstruct, "ORDER BY in a find() query must reference a plain column")
		}
		dir := -1
		if it.Asc {
			dir = 1
		}
		sort[sc.fieldPath(it.Expr.Column)] = dir
	}
	return sort, nil
}

// lowerNativeFilter attempts to express expr using MongoDB's native query
// operators instead of an aggregation $expr, matching the shape MariaDB
// developers expect to see for simple predicates. Returns ok=false when
// expr uses a construct the native query language cannot express, so the
// caller can fall back to $expr.
func lowerNativeFilter(expr ast.Expression, sc *scope) (bson.M, bool) {
	switch expr.Kind {
	case ast.ExprBinary:
		return lowerNativeBinary(expr, sc)
	default:
		return nil, false
	}
}

func lowerNativeBinary(expr ast.Expression, sc *scope) (bson.M, bool) {
	switch expr.BinOp {
	case ast.And:
		left, ok := lowerNativeFilter(*expr.Left, sc)
		if !ok {
			return nil, false
		}
		right, ok := lowerNativeFilter(*expr.Right, sc)
		if !ok {
			return nil, false
		}
		return mergeFilters(left, right), true
	case ast.Eq, ast.Neq, ast.Lt, ast.Lte, ast.Gt, ast.Gte:
		if expr.Left.Kind != ast.ExprColumn || expr.Right.Kind != ast.ExprLit {
			return nil, false
		}
		v, err := lowerLiteral(expr.Right.Lit)
		if err != nil {
			return nil, false
		}
		field := sc.fieldPath(expr.Left.Column)
		if expr.BinOp == ast.Eq {
			return bson.M{field: v}, true
		}
		op := map[ast.BinaryOp]string{ast.Neq: "$ne", ast.Lt: "$lt", ast.Lte: "$lte", ast.Gt: "$gt", ast.Gte: "$gte"}[expr.BinOp]
		return bson.M{field: bson.M{op: v}}, true
	case ast.In, ast.NotIn:
		if expr.Left.Kind != ast.ExprColumn {
			return nil, false
		}
		elems, ok := ast.IsValueList(*expr.Right)
		if !ok {
			return nil, false
		}
		arr := bson.A{}
		for _, el := range elems {
			if el.Kind != ast.ExprLit {
				return nil, false
			}
			v, err := lowerLiteral(el.Lit)
			if err != nil {
				return nil, false
			}
			arr = append(arr, v)
		}
		op := "$in"
		if expr.BinOp == ast.NotIn {
			op = "$nin"
		}
		return bson.M{sc.fieldPath(expr.Left.Column): bson.M{op: arr}}, true
	case ast.Like, ast.NotLike:
		if expr.Left.Kind != ast.ExprColumn {
			return nil, false
		}
		pattern, ok := literalString(*expr.Right)
		if !ok {
			return nil, false
		}
		field := sc.fieldPath(expr.Left.Column)
		regex := likeToRegex(pattern)
		if expr.BinOp == ast.NotLike {
			return bson.M{field: bson.M{"$not": bson.M{"$regex": regex}}}, true
		}
		return bson.M{field: bson.M{"$regex": regex}}, true
	case ast.IsNull, ast.IsNotNull:
		if expr.Left.Kind != ast.ExprColumn {
			return nil, false
		}
		field := sc.fieldPath(expr.Left.Column)
		if expr.BinOp == ast.IsNull {
			return bson.M{field: nil}, true
		}
		return bson.M{field: bson.M{"$ne": nil}}, true
	default:
		return nil, false
	}
}

func mergeFilters(a, b bson.M) bson.M {
	out := bson.M{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, clash := out[k]; clash {
			var andArr bson.A
			if cur, ok := out["$and"]; ok {
				andArr = cur.(bson.A)
			}
			andArr = append(andArr, bson.M{k: existing}, bson.M{k: v})
			out["$and"] = andArr
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
