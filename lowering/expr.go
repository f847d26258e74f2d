package lowering

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/catalog"
	"github.com/sqlmongo/translator/xerrors"
)

// sizeMarker is the FuncName used internally to carry an EXISTS/NOT EXISTS
// lookup-array size check through the expression tree after subquery
// extraction has run. It is never looked up in the catalogue.
const sizeMarker = "__SIZE__"

func sizeOf(field ast.Identifier) ast.Expression {
	return ast.Call(sizeMarker, []ast.Expression{ast.Column(field)}, false, nil)
}

// exprLowerer turns an already subquery-free Expression tree into a MongoDB
// expression value (for use inside $expr, $match, $project, accumulators).
type exprLowerer struct {
	cat *catalog.Catalog
	sc  *scope
	// lets accumulates $$variable bindings for column references that
	// escape into the immediately enclosing query's scope. nil means no
	// outer scope is reachable from here, so any escaping reference is an
	// error rather than a correlation to record.
	lets bson.M
}

func (l *exprLowerer) lower(e ast.Expression) (any, error) {
	switch e.Kind {
	case ast.ExprColumn:
		return l.lowerColumnRef(e.Column)
	case ast.ExprLit:
		return lowerLiteral(e.Lit)
	case ast.ExprStar, ast.ExprQualifiedStar:
		return nil, xerrors.New(xerrors.UnsupportedConstruct, "* cannot be used as a value expression")
	case ast.ExprUnary:
		return l.lowerUnary(e)
	case ast.ExprBinary:
		return l.lowerBinary(e)
	case ast.ExprFunctionCall:
		return l.lowerCall(e)
	case ast.ExprCase:
		return l.lowerCase(e)
	case ast.ExprIf:
		cond, err := l.lower(*e.IfCond)
		if err != nil {
			return nil, err
		}
		then, err := l.lower(*e.IfThen)
		if err != nil {
			return nil, err
		}
		els, err := l.lower(*e.IfElse)
		if err != nil {
			return nil, err
		}
		return bson.M{"$cond": bson.A{cond, then, els}}, nil
	case ast.ExprCoalesce:
		return l.lowerCoalesce(e.Args)
	case ast.ExprNullIf:
		a, err := l.lower(*e.NullIfA)
		if err != nil {
			return nil, err
		}
		b, err := l.lower(*e.NullIfB)
		if err != nil {
			return nil, err
		}
		return bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{a, b}}, nil, a}}, nil
	case ast.ExprSubquery:
		return nil, xerrors.New(xerrors.UnsupportedConstruct, "subquery survived extraction")
	}
	return nil, xerrors.Newf(xerrors.UnsupportedConstruct, "unsupported expression kind %d", e.Kind)
}

func (l *exprLowerer) lowerColumnRef(id ast.Identifier) (any, error) {
	if l.sc.owns(id.Qualifier) {
		return "$" + l.sc.fieldPath(id), nil
	}
	if l.sc.outer != nil && l.sc.outer.owns(id.Qualifier) {
		if l.lets == nil {
			return nil, xerrors.New(xerrors.CorrelationEscapes, "correlated reference not allowed in this position")
		}
		varName := correlationVarName(id)
		l.lets[varName] = "$" + l.sc.outer.fieldPath(id)
		return "$$" + varName, nil
	}
	if l.sc.outer != nil && l.sc.outer.outer != nil {
		return nil, xerrors.Newf(xerrors.CorrelationEscapes, "identifier %s correlates beyond the immediate enclosing query", id.Name)
	}
	return nil, xerrors.Newf(xerrors.UnresolvedIdentifier, "unresolved identifier %s", id.Name)
}

func correlationVarName(id ast.Identifier) string {
	if id.Qualifier != "" {
		return id.Qualifier + "_" + id.Name
	}
	return id.Name
}

func lowerLiteral(lit ast.Literal) (any, error) {
	switch lit.Kind {
	case ast.LitInteger:
		return lit.Int, nil
	case ast.LitFloat:
		return lit.Float, nil
	case ast.LitString:
		return lit.Str, nil
	case ast.LitBoolean:
		return lit.Bool, nil
	case ast.LitNull:
		return nil, nil
	case ast.LitDate:
		return bson.M{"$dateFromString": bson.M{"dateString": lit.Str}}, nil
	case ast.LitInterval:
		return bson.M{"unit": strings.ToLower(string(lit.Interval.Unit)), "amount": lit.Interval.Amount}, nil
	}
	return nil, xerrors.New(xerrors.UnsupportedConstruct, "unsupported literal kind")
}

func (l *exprLowerer) lowerUnary(e ast.Expression) (any, error) {
	operand, err := l.lower(*e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.UnaryOp {
	case ast.Neg:
		return bson.M{"$multiply": bson.A{operand, -1}}, nil
	case ast.Not:
		return bson.M{"$not": bson.A{operand}}, nil
	case ast.BitNot:
		return bson.M{"$multiply": bson.A{bson.M{"$add": bson.A{operand, 1}}, -1}}, nil
	}
	return nil, xerrors.New(xerrors.UnsupportedConstruct, "unsupported unary operator")
}

var simpleBinOps = map[ast.BinaryOp]string{
	ast.Add: "$add", ast.Sub: "$subtract", ast.Mul: "$multiply", ast.Div: "$divide", ast.Mod: "$mod",
	ast.Eq: "$eq", ast.Neq: "$ne", ast.Lt: "$lt", ast.Lte: "$lte", ast.Gt: "$gt", ast.Gte: "$gte",
	ast.BitAnd: "$bitAnd", ast.BitOr: "$bitOr", ast.BitXor: "$bitXor",
}

func (l *exprLowerer) lowerBinary(e ast.Expression) (any, error) {
	switch e.BinOp {
	case ast.And, ast.Or:
		left, err := l.lower(*e.Left)
		if err != nil {
			return nil, err
		}
		right, err := l.lower(*e.Right)
		if err != nil {
			return nil, err
		}
		op := "$and"
		if e.BinOp == ast.Or {
			op = "$or"
		}
		return bson.M{op: bson.A{left, right}}, nil
	case ast.IsNull:
		operand, err := l.lower(*e.Left)
		if err != nil {
			return nil, err
		}
		return bson.M{"$eq": bson.A{operand, nil}}, nil
	case ast.IsNotNull:
		operand, err := l.lower(*e.Left)
		if err != nil {
			return nil, err
		}
		return bson.M{"$ne": bson.A{operand, nil}}, nil
	case ast.Concat:
		left, err := l.lower(*e.Left)
		if err != nil {
			return nil, err
		}
		right, err := l.lower(*e.Right)
		if err != nil {
			return nil, err
		}
		return bson.M{"$concat": bson.A{left, right}}, nil
	case ast.Like, ast.NotLike:
		left, err := l.lower(*e.Left)
		if err != nil {
			return nil, err
		}
		pattern, ok := literalString(*e.Right)
		if !ok {
			return nil, xerrors.New(xerrors.UnsupportedArgument, "LIKE pattern must be a string literal")
		}
		match := bson.M{"$regexMatch": bson.M{"input": left, "regex": likeToRegex(pattern)}}
		if e.BinOp == ast.NotLike {
			return bson.M{"$not": bson.A{match}}, nil
		}
		return match, nil
	case ast.Between:
		return nil, xerrors.New(xerrors.UnsupportedConstruct, "BETWEEN must be desugared before lowering")
	case ast.In, ast.NotIn:
		left, err := l.lower(*e.Left)
		if err != nil {
			return nil, err
		}
		if elems, ok := ast.IsValueList(*e.Right); ok {
			arr := bson.A{}
			for _, el := range elems {
				v, err := l.lower(el)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			in := bson.M{"$in": bson.A{left, arr}}
			if e.BinOp == ast.NotIn {
				return bson.M{"$not": bson.A{in}}, nil
			}
			return in, nil
		}
		right, err := l.lower(*e.Right)
		if err != nil {
			return nil, err
		}
		in := bson.M{"$in": bson.A{left, right}}
		if e.BinOp == ast.NotIn {
			return bson.M{"$not": bson.A{in}}, nil
		}
		return in, nil
	}
	if op, ok := simpleBinOps[e.BinOp]; ok {
		left, err := l.lower(*e.Left)
		if err != nil {
			return nil, err
		}
		right, err := l.lower(*e.Right)
		if err != nil {
			return nil, err
		}
		return bson.M{op: bson.A{left, right}}, nil
	}
	return nil, xerrors.New(xerrors.UnsupportedConstruct, "unsupported binary operator")
}

func literalString(e ast.Expression) (string, bool) {
	if e.Kind == ast.ExprLit && e.Lit.Kind == ast.LitString {
		return e.Lit.Str, true
	}
	return "", false
}

func (l *exprLowerer) lowerCall(e ast.Expression) (any, error) {
	if e.FuncName == sizeMarker {
		v, err := l.lower(e.Args[0])
		if err != nil {
			return nil, err
		}
		return bson.M{"$size": v}, nil
	}
	if _, ok := ast.IsValueList(e); ok {
		return nil, xerrors.New(xerrors.UnsupportedConstruct, "value list used outside IN/row-subquery context")
	}
	args := make([]any, 0, len(e.Args))
	for _, a := range e.Args {
		if a.Kind == ast.ExprStar {
			args = append(args, nil) // COUNT(*) sentinel
			continue
		}
		v, err := l.lower(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return l.cat.Apply(e.FuncName, args)
}

func (l *exprLowerer) lowerCase(e ast.Expression) (any, error) {
	branches := bson.A{}
	for _, wt := range e.Branches {
		when := wt.When
		if e.Operand != nil {
			when = ast.BinaryExpr(ast.Eq, *e.Operand, wt.When)
		}
		cond, err := l.lower(when)
		if err != nil {
			return nil, err
		}
		then, err := l.lower(wt.Then)
		if err != nil {
			return nil, err
		}
		branches = append(branches, bson.M{"case": cond, "then": then})
	}
	sw := bson.M{"branches": branches}
	if e.Else != nil {
		els, err := l.lower(*e.Else)
		if err != nil {
			return nil, err
		}
		sw["default"] = els
	}
	return bson.M{"$switch": sw}, nil
}

func (l *exprLowerer) lowerCoalesce(args []ast.Expression) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	v, err := l.lower(args[len(args)-1])
	if err != nil {
		return nil, err
	}
	result := v
	for i := len(args) - 2; i >= 0; i-- {
		v, err := l.lower(args[i])
		if err != nil {
			return nil, err
		}
		result = bson.M{"$ifNull": bson.A{v, result}}
	}
	return result, nil
}
