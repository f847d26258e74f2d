package lowering

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/catalog"
	"github.com/sqlmongo/translator/xerrors"
)

// windowStage accumulates the output fields of calls sharing a structurally
// identical OVER clause: $setWindowFields takes exactly one
// partitionBy/sortBy pair per stage, so every distinct OVER clause in a
// SELECT needs its own stage.
type windowStage struct {
	over   ast.OverClause
	output bson.M
}

// windowCollector walks a projection tree, replacing each OVER(...)
// window-function call with a reference to a synthetic $setWindowFields
// output field.
type windowCollector struct {
	cat     *catalog.Catalog
	sc      *scope
	counter int
	stages  []*windowStage
}

func (wc *windowCollector) collect(e ast.Expression) (ast.Expression, error) {
	if e.Kind == ast.ExprFunctionCall {
		if entry, ok := wc.cat.Lookup(e.FuncName); ok && entry.Kind == catalog.WindowFunc {
			if e.Over == nil {
				return e, xerrors.Newf(xerrors.UnsupportedConstruct, "%s requires an OVER(...) clause", e.FuncName)
			}
			return wc.liftWindow(e)
		}
	}
	switch e.Kind {
	case ast.ExprUnary:
		op, err := wc.collect(*e.Operand)
		if err != nil {
			return e, err
		}
		e.Operand = &op
	case ast.ExprBinary:
		l, err := wc.collect(*e.Left)
		if err != nil {
			return e, err
		}
		r, err := wc.collect(*e.Right)
		if err != nil {
			return e, err
		}
		e.Left, e.Right = &l, &r
	case ast.ExprFunctionCall:
		args := make([]ast.Expression, len(e.Args))
		for i, a := range e.Args {
			na, err := wc.collect(a)
			if err != nil {
				return e, err
			}
			args[i] = na
		}
		e.Args = args
	case ast.ExprCase:
		branches := make([]ast.WhenThen, len(e.Branches))
		for i, wt := range e.Branches {
			w, err := wc.collect(wt.When)
			if err != nil {
				return e, err
			}
			t, err := wc.collect(wt.Then)
			if err != nil {
				return e, err
			}
			branches[i] = ast.WhenThen{When: w, Then: t}
		}
		e.Branches = branches
		if e.Else != nil {
			els, err := wc.collect(*e.Else)
			if err != nil {
				return e, err
			}
			e.Else = &els
		}
	case ast.ExprIf:
		c, err := wc.collect(*e.IfCond)
		if err != nil {
			return e, err
		}
		t, err := wc.collect(*e.IfThen)
		if err != nil {
			return e, err
		}
		el, err := wc.collect(*e.IfElse)
		if err != nil {
			return e, err
		}
		e.IfCond, e.IfThen, e.IfElse = &c, &t, &el
	case ast.ExprCoalesce:
		args := make([]ast.Expression, len(e.Args))
		for i, a := range e.Args {
			na, err := wc.collect(a)
			if err != nil {
				return e, err
			}
			args[i] = na
		}
		e.Args = args
	case ast.ExprNullIf:
		a, err := wc.collect(*e.NullIfA)
		if err != nil {
			return e, err
		}
		b, err := wc.collect(*e.NullIfB)
		if err != nil {
			return e, err
		}
		e.NullIfA, e.NullIfB = &a, &b
	}
	return e, nil
}

func (wc *windowCollector) liftWindow(call ast.Expression) (ast.Expression, error) {
	args := make([]any, 0, len(call.Args))
	for _, a := range call.Args {
		lw := &exprLowerer{cat: wc.cat, sc: wc.sc}
		v, err := lw.lower(a)
		if err != nil {
			return call, err
		}
		args = append(args, v)
	}
	accum, err := wc.cat.Apply(call.FuncName, args)
	if err != nil {
		return call, err
	}

	stage := wc.stageFor(*call.Over)
	wc.counter++
	name := fmt.Sprintf("win%d", wc.counter)
	stage.output[name] = accum
	return ast.Column(ast.Identifier{Name: name}), nil
}

// stageFor returns the windowStage for over, reusing an earlier stage from
// this same SELECT when its OVER clause is structurally identical.
func (wc *windowCollector) stageFor(over ast.OverClause) *windowStage {
	for _, s := range wc.stages {
		if reflect.DeepEqual(s.over, over) {
			return s
		}
	}
	s := &windowStage{over: over, output: bson.M{}}
	wc.stages = append(wc.stages, s)
	return s
}

// liftWindowFunctions rewrites every OVER(...) call across projections into
// a reference to a synthetic $setWindowFields output field, and returns the
// stage(s) needed to compute them, in first-seen order. Per the documented
// stage order, these sit immediately after WHERE/JOIN and before GROUP BY.
func (e *Engine) liftWindowFunctions(projections []ast.Projection, sc *scope) ([]bson.D, error) {
	wc := &windowCollector{cat: e.cat, sc: sc}
	for i, p := range projections {
		rewritten, err := wc.collect(p.Expr)
		if err != nil {
			return nil, err
		}
		projections[i].Expr = rewritten
	}
	var stages []bson.D
	for _, s := range wc.stages {
		fields := bson.M{"output": s.output}
		if len(s.over.PartitionBy) > 0 {
			partitionBy, err := lowerPartitionBy(s.over.PartitionBy, e.cat, sc)
			if err != nil {
				return nil, err
			}
			fields["partitionBy"] = partitionBy
		}
		if len(s.over.OrderBy) > 0 {
			sortBy, err := lowerSort(s.over.OrderBy, sc)
			if err != nil {
				return nil, err
			}
			fields["sortBy"] = sortBy
		}
		stages = append(stages, bson.D{{Key: "$setWindowFields", Value: fields}})
	}
	return stages, nil
}

func lowerPartitionBy(exprs []ast.Expression, cat *catalog.Catalog, sc *scope) (any, error) {
	lw := &exprLowerer{cat: cat, sc: sc}
	if len(exprs) == 1 {
		return lw.lower(exprs[0])
	}
	arr := bson.A{}
	for _, ex := range exprs {
		v, err := lw.lower(ex)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}
