package lowering

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/xerrors"
)

// subqueryCollector accumulates the $lookup (and companion) pipeline stages
// produced while walking a WHERE expression tree for embedded
// subqueries, per the five lowering shapes the translator recognises.
type subqueryCollector struct {
	engine    *Engine
	preStages []bson.D
	counter   int
}

func (sl *subqueryCollector) next(prefix string) string {
	sl.counter++
	return fmt.Sprintf("__%s_%d", prefix, sl.counter)
}

// extract returns a copy of expr in which every ExprSubquery node is
// replaced with a reference into the result of a $lookup stage appended to
// sl.preStages.
func (sl *subqueryCollector) extract(expr ast.Expression, sc *scope) (ast.Expression, error) {
	switch expr.Kind {
	case ast.ExprUnary:
		operand, err := sl.extract(*expr.Operand, sc)
		if err != nil {
			return expr, err
		}
		expr.Operand = &operand
		return expr, nil
	case ast.ExprBinary:
		return sl.extractBinary(expr, sc)
	case ast.ExprFunctionCall:
		args := make([]ast.Expression, len(expr.Args))
		for i, a := range expr.Args {
			na, err := sl.extract(a, sc)
			if err != nil {
				return expr, err
			}
			args[i] = na
		}
		expr.Args = args
		return expr, nil
	case ast.ExprCase:
		if expr.Operand != nil {
			op, err := sl.extract(*expr.Operand, sc)
			if err != nil {
				return expr, err
			}
			expr.Operand = &op
		}
		branches := make([]ast.WhenThen, len(expr.Branches))
		for i, wt := range expr.Branches {
			when, err := sl.extract(wt.When, sc)
			if err != nil {
				return expr, err
			}
			then, err := sl.extract(wt.Then, sc)
			if err != nil {
				return expr, err
			}
			branches[i] = ast.WhenThen{When: when, Then: then}
		}
		expr.Branches = branches
		if expr.Else != nil {
			els, err := sl.extract(*expr.Else, sc)
			if err != nil {
				return expr, err
			}
			expr.Else = &els
		}
		return expr, nil
	case ast.ExprIf:
		cond, err := sl.extract(*expr.IfCond, sc)
		if err != nil {
			return expr, err
		}
		then, err := sl.extract(*expr.IfThen, sc)
		if err != nil {
			return expr, err
		}
		els, err := sl.extract(*expr.IfElse, sc)
		if err != nil {
			return expr, err
		}
		expr.IfCond, expr.IfThen, expr.IfElse = &cond, &then, &els
		return expr, nil
	case ast.ExprCoalesce:
		args := make([]ast.Expression, len(expr.Args))
		for i, a := range expr.Args {
			na, err := sl.extract(a, sc)
			if err != nil {
				return expr, err
			}
			args[i] = na
		}
		expr.Args = args
		return expr, nil
	case ast.ExprNullIf:
		a, err := sl.extract(*expr.NullIfA, sc)
		if err != nil {
			return expr, err
		}
		b, err := sl.extract(*expr.NullIfB, sc)
		if err != nil {
			return expr, err
		}
		expr.NullIfA, expr.NullIfB = &a, &b
		return expr, nil
	case ast.ExprSubquery:
		return sl.liftSubquery(expr, sc)
	default:
		return expr, nil
	}
}

// extractBinary handles the In/NotIn and Row-comparison shapes specially,
// since their replacement depends on both sides of the binary node, then
// falls back to extracting each side independently.
func (sl *subqueryCollector) extractBinary(expr ast.Expression, sc *scope) (ast.Expression, error) {
	right := *expr.Right
	if right.Kind == ast.ExprSubquery {
		switch expr.BinOp {
		case ast.In, ast.NotIn:
			return sl.liftInSubquery(expr, sc)
		case ast.Eq:
			if elems, ok := ast.IsValueList(*expr.Left); ok && right.SubqueryKind == ast.Row {
				return sl.liftRowSubquery(elems, right.Subquery, sc)
			}
		}
	}
	left, err := sl.extract(*expr.Left, sc)
	if err != nil {
		return expr, err
	}
	rightLowered, err := sl.extract(right, sc)
	if err != nil {
		return expr, err
	}
	expr.Left, expr.Right = &left, &rightLowered
	return expr, nil
}

func (sl *subqueryCollector) liftSubquery(expr ast.Expression, sc *scope) (ast.Expression, error) {
	switch expr.SubqueryKind {
	case ast.Scalar:
		return sl.liftScalarSubquery(expr, sc)
	case ast.Exists, ast.NotExists:
		return sl.liftExistsSubquery(expr, sc)
	default:
		return expr, xerrors.New(xerrors.UnsupportedConstruct, "subquery shape not supported in this position")
	}
}

func (sl *subqueryCollector) projectedField(stmt *ast.SelectStatement) (string, error) {
	if len(stmt.Projections) != 1 {
		return "", xerrors.New(xerrors.UnsupportedConstruct, "subquery used as a value must project exactly one column")
	}
	p := stmt.Projections[0]
	if p.Alias != "" {
		return p.Alias, nil
	}
	if p.Expr.Kind == ast.ExprColumn {
		return p.Expr.Column.Name, nil
	}
	return "", xerrors.New(xerrors.UnsupportedConstruct, "subquery's single projected column must be named or a plain column")
}

func (sl *subqueryCollector) liftScalarSubquery(expr ast.Expression, sc *scope) (ast.Expression, error) {
	field, err := sl.projectedField(expr.Subquery)
	if err != nil {
		return expr, err
	}
	alias := sl.next("scalar")
	stages, lets, err := sl.engine.lowerCorrelatedSubPipeline(expr.Subquery, sc)
	if err != nil {
		return expr, err
	}
	sl.preStages = append(sl.preStages, lookupStage(sl.engine.targetCollection(expr.Subquery), alias, lets, stages))
	sl.preStages = append(sl.preStages, bson.D{{Key: "$unwind", Value: bson.M{"path": "$" + alias, "preserveNullAndEmptyArrays": true}}})
	return ast.Column(ast.Identifier{Name: field, Qualifier: alias}), nil
}

func (sl *subqueryCollector) liftInSubquery(expr ast.Expression, sc *scope) (ast.Expression, error) {
	right := *expr.Right
	field, err := sl.projectedField(right.Subquery)
	if err != nil {
		return expr, err
	}
	alias := sl.next("in")
	stages, lets, err := sl.engine.lowerCorrelatedSubPipeline(right.Subquery, sc)
	if err != nil {
		return expr, err
	}
	sl.preStages = append(sl.preStages, lookupStage(sl.engine.targetCollection(right.Subquery), alias, lets, stages))
	left, err := sl.extract(*expr.Left, sc)
	if err != nil {
		return expr, err
	}
	rewritten := ast.BinaryExpr(ast.In, left, ast.Column(ast.Identifier{Name: field, Qualifier: alias}))
	if expr.BinOp == ast.NotIn {
		return ast.UnaryExpr(ast.Not, rewritten), nil
	}
	return rewritten, nil
}

func (sl *subqueryCollector) liftExistsSubquery(expr ast.Expression, sc *scope) (ast.Expression, error) {
	alias := sl.next("exists")
	stages, lets, err := sl.engine.lowerCorrelatedSubPipeline(expr.Subquery, sc)
	if err != nil {
		return expr, err
	}
	sl.preStages = append(sl.preStages, lookupStage(sl.engine.targetCollection(expr.Subquery), alias, lets, stages))
	sizeExpr := sizeOf(ast.Identifier{Name: alias})
	cmp := ast.BinaryExpr(ast.Gt, sizeExpr, ast.Lit(ast.Integer(0)))
	if expr.SubqueryKind == ast.NotExists {
		return ast.UnaryExpr(ast.Not, cmp), nil
	}
	return cmp, nil
}

// liftRowSubquery handles `(a,b,...) = (SELECT x,y,... FROM ...)`: the
// right side's projections are matched positionally against the left
// tuple and combined into a conjunction of equalities on the lookup's
// fields.
func (sl *subqueryCollector) liftRowSubquery(tuple []ast.Expression, stmt *ast.SelectStatement, sc *scope) (ast.Expression, error) {
	if len(tuple) != len(stmt.Projections) {
		return ast.Expression{}, xerrors.New(xerrors.UnsupportedConstruct, "row subquery column count mismatch")
	}
	alias := sl.next("row")
	stages, lets, err := sl.engine.lowerCorrelatedSubPipeline(stmt, sc)
	if err != nil {
		return ast.Expression{}, err
	}
	sl.preStages = append(sl.preStages, lookupStage(sl.engine.targetCollection(stmt), alias, lets, stages))
	sl.preStages = append(sl.preStages, bson.D{{Key: "$unwind", Value: bson.M{"path": "$" + alias, "preserveNullAndEmptyArrays": true}}})

	var conj *ast.Expression
	for i, p := range stmt.Projections {
		name := p.Alias
		if name == "" && p.Expr.Kind == ast.ExprColumn {
			name = p.Expr.Column.Name
		}
		if name == "" {
			return ast.Expression{}, xerrors.New(xerrors.UnsupportedConstruct, "row subquery columns must be named or plain columns")
		}
		left, err := sl.extract(tuple[i], sc)
		if err != nil {
			return ast.Expression{}, err
		}
		eq := ast.BinaryExpr(ast.Eq, left, ast.Column(ast.Identifier{Name: name, Qualifier: alias}))
		if conj == nil {
			conj = &eq
		} else {
			and := ast.BinaryExpr(ast.And, *conj, eq)
			conj = &and
		}
	}
	return *conj, nil
}

func lookupStage(from, as string, lets bson.M, pipeline []bson.D) bson.D {
	lookup := bson.M{"from": from, "as": as, "pipeline": pipeline}
	if len(lets) > 0 {
		lookup["let"] = lets
	}
	return bson.D{{Key: "$lookup", Value: lookup}}
}
