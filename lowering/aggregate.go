package lowering

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/catalog"
	"github.com/sqlmongo/translator/invocation"
	"github.com/sqlmongo/translator/xerrors"
)

func (e *Engine) lowerAggregate(stmt *ast.SelectStatement) (*invocation.Invocation, error) {
	return e.lowerAggregateWithPreStages(stmt, nil, nil)
}

// lowerAggregateWithPreStages assembles the full aggregation pipeline for a
// SELECT, in the engine's deterministic stage order: base collection (or
// derived-table pipeline), joins, WHERE, window functions, GROUP BY,
// HAVING, projection, DISTINCT, ORDER BY or the implicit ordering shim,
// OFFSET, LIMIT. preStages (already-built $lookup
// stages from a subquery found in a find()-path WHERE that had to fall
// back here) are spliced in immediately before the WHERE match.
func (e *Engine) lowerAggregateWithPreStages(stmt *ast.SelectStatement, preStages []bson.D, _ *scope) (*invocation.Invocation, error) {
	var pipeline []bson.D
	var base *scope
	var collection string
	if stmt.From.Derived != nil {
		sub, err := e.lowerAggregate(stmt.From.Derived)
		if err != nil {
			return nil, err
		}
		collection = sub.Collection
		pipeline = append(pipeline, sub.Pipeline...)
		base = newScope(stmt.From.Alias, stmt.From.Alias)
	} else {
		collection = collectionName(stmt.From.Name)
		base = newScope(stmt.From.Name, stmt.From.Alias)
	}
	sc := base

	for _, j := range stmt.Joins {
		stage, err := e.lowerJoin(j, sc)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, stage...)
		sc.joinAliases[joinAliasOf(j.Target)] = true
	}

	// Subquery $lookup stages embed their results under their "as" name;
	// registering those names lets references such as __in_1.col resolve.
	ownLookups := func(stages []bson.D) {
		for _, st := range stages {
			for _, el := range st {
				if lk, ok := el.Value.(bson.M); ok && el.Key == "$lookup" {
					if as, ok := lk["as"].(string); ok {
						sc.joinAliases[as] = true
					}
				}
			}
		}
	}
	pipeline = append(pipeline, preStages...)
	ownLookups(preStages)

	if stmt.Where != nil {
		sl := &subqueryCollector{engine: e}
		rewritten, err := sl.extract(*stmt.Where, sc)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, sl.preStages...)
		ownLookups(sl.preStages)
		lw := &exprLowerer{cat: e.cat, sc: sc}
		v, err := lw.lower(rewritten)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"$expr": v}}})
	}

	projections := make([]ast.Projection, len(stmt.Projections))
	copy(projections, stmt.Projections)
	windowStages, err := e.liftWindowFunctions(projections, sc)
	if err != nil {
		return nil, err
	}
	pipeline = append(pipeline, windowStages...)

	ac := &aggregateCollector{cat: e.cat, sc: sc, fields: bson.M{}}
	// groupKeyName returns the flattened output field a GROUP BY expression
	// maps back to: the column's own name for a plain column, a positional
	// synthetic name otherwise.
	groupKeyName := func(i int, g ast.Expression) string {
		if g.Kind == ast.ExprColumn {
			return g.Column.Name
		}
		return fmt.Sprintf("k%d", i)
	}
	// A single-column GROUP BY's _id is the bare key expression (spec §8
	// scenario 2's `_id:"$country"`), not a wrapper object — only two or
	// more GROUP BY expressions need the object form to carry multiple keys.
	var groupID any
	var keyDoc bson.M
	var singleKeyName string
	switch len(stmt.GroupBy) {
	case 0:
	case 1:
		lw := &exprLowerer{cat: e.cat, sc: sc}
		v, err := lw.lower(stmt.GroupBy[0])
		if err != nil {
			return nil, err
		}
		singleKeyName = groupKeyName(0, stmt.GroupBy[0])
		groupID = v
	default:
		keyDoc = bson.M{}
		for i, g := range stmt.GroupBy {
			lw := &exprLowerer{cat: e.cat, sc: sc}
			v, err := lw.lower(g)
			if err != nil {
				return nil, err
			}
			keyDoc[groupKeyName(i, g)] = v
		}
		groupID = keyDoc
	}

	var having *ast.Expression
	if len(stmt.GroupBy) > 0 || hasAggregateCall(stmt, e.cat) {
		if err := checkGroupByDiscipline(stmt, e.cat); err != nil {
			return nil, err
		}
		for i, p := range projections {
			rewritten, err := ac.collect(p.Expr)
			if err != nil {
				return nil, err
			}
			projections[i].Expr = rewritten
		}
		if stmt.Having != nil {
			rewritten, err := ac.collect(*stmt.Having)
			if err != nil {
				return nil, err
			}
			having = &rewritten
		}
		group := bson.M{"_id": groupID}
		for k, v := range ac.fields {
			group[k] = v
		}
		pipeline = append(pipeline, bson.D{{Key: "$group", Value: group}})

		flatten := bson.M{"_id": 0}
		if singleKeyName != "" {
			flatten[singleKeyName] = "$_id"
		}
		for name := range keyDoc {
			flatten[name] = "$_id." + name
		}
		for k := range ac.fields {
			flatten[k] = 1
		}
		if len(flatten) > 1 {
			pipeline = append(pipeline, bson.D{{Key: "$project", Value: flatten}})
		}
		sc = newScope("", "")
	}

	if having != nil {
		lw := &exprLowerer{cat: e.cat, sc: sc}
		v, err := lw.lower(*having)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"$expr": v}}})
	}

	star := false
	for _, p := range projections {
		if p.Expr.Kind == ast.ExprStar {
			star = true
			break
		}
	}

	if star {
		// SELECT * projects every field discovered from FROM and joins: by
		// this point the document already carries every base field plus each
		// join alias as an embedded sub-document (from $lookup/$unwind), so
		// no $project stage is needed — an empty {$project:{}} is itself
		// rejected by the server, and there is no schema to enumerate base
		// columns against to build one explicitly.
		if stmt.Distinct {
			pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{"_id": "$$ROOT"}}})
			pipeline = append(pipeline, bson.D{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$_id"}}})
		}
	} else {
		projStage, err := e.projectProjections(projections, sc)
		if err != nil {
			return nil, err
		}
		if stmt.Distinct {
			dedupID := bson.M{}
			for _, k := range projStage {
				dedupID[k.Key] = "$" + k.Key
			}
			pipeline = append(pipeline, projStageToD(projStage))
			pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{"_id": dedupID}}})
			pipeline = append(pipeline, bson.D{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$_id"}}})
		} else {
			pipeline = append(pipeline, projStageToD(projStage))
		}
	}

	if len(stmt.OrderBy) > 0 {
		orderBy, err := resolveOrderByPositions(stmt.OrderBy, stmt.Projections)
		if err != nil {
			return nil, err
		}
		sort := bson.D{}
		for _, it := range orderBy {
			if it.Expr.Kind != ast.ExprColumn {
				return nil, xerrors.New(xerrors.UnsupportedConstruct, "ORDER BY must reference an output column")
			}
			dir := -1
			if it.Asc {
				dir = 1
			}
			sort = append(sort, bson.E{Key: it.Expr.Column.Name, Value: dir})
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	} else if (stmt.Limit != nil || stmt.Offset != nil) && e.opts.ImplicitOrderOnLimit {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}})
	}

	if stmt.Offset != nil {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: *stmt.Offset}})
	}
	if stmt.Limit != nil {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: *stmt.Limit}})
	}

	inv := &invocation.Invocation{
		Collection: collection,
		Op:         invocation.OpAggregate,
		Pipeline:   pipeline,
	}
	coll := e.opts.Collation
	inv.Collation = &coll
	return inv, nil
}

func joinAliasOf(t ast.TableRef) string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// lowerJoin produces the $lookup (and companion $unwind) stages for one
// JoinOp. Equi-joins on a bare column comparison use the cheap
// localField/foreignField form; everything else falls back to a
// pipeline-based $lookup with a $match{$expr} using correlated let
// variables, the same machinery subquery lowering uses.
func (e *Engine) lowerJoin(j ast.JoinOp, sc *scope) ([]bson.D, error) {
	if j.Kind == ast.RightJoin {
		return nil, xerrors.New(xerrors.UnsupportedConstruct, "RIGHT JOIN requires swapping the pipeline's base collection, which this lowering does not attempt")
	}
	alias := joinAliasOf(j.Target)
	preserve := j.Kind == ast.LeftJoin

	if j.Target.Derived != nil {
		return e.lowerDerivedJoin(j, sc, alias, preserve)
	}

	from := collectionName(j.Target.Name)

	if j.Kind == ast.CrossJoin || j.On == nil {
		stage := bson.D{{Key: "$lookup", Value: bson.M{"from": from, "as": alias, "pipeline": []bson.D{}}}}
		unwind := bson.D{{Key: "$unwind", Value: bson.M{"path": "$" + alias, "preserveNullAndEmptyArrays": preserve}}}
		return []bson.D{stage, unwind}, nil
	}

	if local, foreign, ok := equiJoinFields(*j.On, sc, alias); ok {
		stage := bson.D{{Key: "$lookup", Value: bson.M{
			"from":         from,
			"localField":   local,
			"foreignField": foreign,
			"as":           alias,
		}}}
		unwind := bson.D{{Key: "$unwind", Value: bson.M{"path": "$" + alias, "preserveNullAndEmptyArrays": preserve}}}
		return []bson.D{stage, unwind}, nil
	}

	innerScope := newScope(j.Target.Name, alias)
	innerScope.outer = sc
	lets := bson.M{}
	lw := &exprLowerer{cat: e.cat, sc: innerScope, lets: lets}
	cond, err := lw.lower(*j.On)
	if err != nil {
		return nil, err
	}
	inner := []bson.D{{{Key: "$match", Value: bson.M{"$expr": cond}}}}
	lookup := bson.M{"from": from, "as": alias, "pipeline": inner}
	if len(lets) > 0 {
		lookup["let"] = lets
	}
	stage := bson.D{{Key: "$lookup", Value: lookup}}
	unwind := bson.D{{Key: "$unwind", Value: bson.M{"path": "$" + alias, "preserveNullAndEmptyArrays": preserve}}}
	return []bson.D{stage, unwind}, nil
}

// lowerDerivedJoin joins against a CTE or a subquery given as a JOIN
// target: the derived table's own pipeline is nested inside the $lookup,
// with the ON condition appended as a final $match{$expr} using let-bound
// references into the outer row, the same mechanism correlated subqueries
// use.
func (e *Engine) lowerDerivedJoin(j ast.JoinOp, sc *scope, alias string, preserve bool) ([]bson.D, error) {
	sub, err := e.lowerAggregate(j.Target.Derived)
	if err != nil {
		return nil, err
	}
	inner := append([]bson.D{}, sub.Pipeline...)
	lets := bson.M{}
	if j.On != nil {
		innerScope := newScope(alias, alias)
		innerScope.outer = sc
		lw := &exprLowerer{cat: e.cat, sc: innerScope, lets: lets}
		cond, err := lw.lower(*j.On)
		if err != nil {
			return nil, err
		}
		inner = append(inner, bson.D{{Key: "$match", Value: bson.M{"$expr": cond}}})
	}
	lookup := bson.M{"from": sub.Collection, "as": alias, "pipeline": inner}
	if len(lets) > 0 {
		lookup["let"] = lets
	}
	stage := bson.D{{Key: "$lookup", Value: lookup}}
	unwind := bson.D{{Key: "$unwind", Value: bson.M{"path": "$" + alias, "preserveNullAndEmptyArrays": preserve}}}
	return []bson.D{stage, unwind}, nil
}

// equiJoinFields recognises `ON base.col = target.col` (in either order)
// and returns the plain field paths $lookup's cheap form needs.
func equiJoinFields(on ast.Expression, sc *scope, targetAlias string) (string, string, bool) {
	if on.Kind != ast.ExprBinary || on.BinOp != ast.Eq {
		return "", "", false
	}
	if on.Left.Kind != ast.ExprColumn || on.Right.Kind != ast.ExprColumn {
		return "", "", false
	}
	l, r := on.Left.Column, on.Right.Column
	if l.Qualifier == targetAlias && r.Qualifier != targetAlias {
		l, r = r, l
	} else if r.Qualifier != targetAlias {
		return "", "", false
	}
	if !sc.owns(l.Qualifier) {
		return "", "", false
	}
	return sc.fieldPath(l), r.Name, true
}

// checkGroupByDiscipline enforces that, once GROUP BY or an aggregate call
// forces this statement down the aggregation path, every non-aggregate
// projection is structurally one of the group key expressions: MongoDB has
// no implicit "pick an arbitrary row" the way MariaDB's non-strict GROUP BY
// does, so an expression the group stage cannot reconstruct from its _id is
// a translation-time error, not a runtime surprise. HAVING expressions are
// not checked here.
func checkGroupByDiscipline(stmt *ast.SelectStatement, cat *catalog.Catalog) error {
	for _, p := range stmt.Projections {
		if exprHasAggregate(p.Expr, cat) {
			continue
		}
		if !exprInGroupBy(p.Expr, stmt.GroupBy) {
			return xerrors.Newf(xerrors.GroupByMismatch, "projection %q is neither an aggregate nor part of GROUP BY", projectionLabel(p))
		}
	}
	return nil
}

func exprInGroupBy(e ast.Expression, groupBy []ast.Expression) bool {
	for _, g := range groupBy {
		if reflect.DeepEqual(e, g) {
			return true
		}
	}
	return false
}

func projectionLabel(p ast.Projection) string {
	if p.Alias != "" {
		return p.Alias
	}
	if p.Expr.Kind == ast.ExprColumn {
		return p.Expr.Column.Name
	}
	return "<expr>"
}

func hasAggregateCall(stmt *ast.SelectStatement, cat *catalog.Catalog) bool {
	for _, p := range stmt.Projections {
		if exprHasAggregate(p.Expr, cat) {
			return true
		}
	}
	if stmt.Having != nil && exprHasAggregate(*stmt.Having, cat) {
		return true
	}
	return false
}

func exprHasAggregate(e ast.Expression, cat *catalog.Catalog) bool {
	if e.Kind == ast.ExprFunctionCall {
		if entry, ok := cat.Lookup(e.FuncName); ok && entry.Kind == catalog.AggregateFunc {
			return true
		}
		for _, a := range e.Args {
			if exprHasAggregate(a, cat) {
				return true
			}
		}
	}
	return false
}

// aggregateCollector walks a projection/HAVING expression tree, replacing
// each aggregate function call with a reference to a synthetic $group
// output field, and records the accumulator expression for that field.
type aggregateCollector struct {
	cat     *catalog.Catalog
	sc      *scope
	fields  bson.M
	counter int
}

func (ac *aggregateCollector) collect(e ast.Expression) (ast.Expression, error) {
	if e.Kind == ast.ExprFunctionCall {
		if entry, ok := ac.cat.Lookup(e.FuncName); ok && entry.Kind == catalog.AggregateFunc {
			return ac.liftAggregate(e)
		}
	}
	switch e.Kind {
	case ast.ExprUnary:
		op, err := ac.collect(*e.Operand)
		if err != nil {
			return e, err
		}
		e.Operand = &op
	case ast.ExprBinary:
		l, err := ac.collect(*e.Left)
		if err != nil {
			return e, err
		}
		r, err := ac.collect(*e.Right)
		if err != nil {
			return e, err
		}
		e.Left, e.Right = &l, &r
	case ast.ExprFunctionCall:
		args := make([]ast.Expression, len(e.Args))
		for i, a := range e.Args {
			na, err := ac.collect(a)
			if err != nil {
				return e, err
			}
			args[i] = na
		}
		e.Args = args
	case ast.ExprCase:
		branches := make([]ast.WhenThen, len(e.Branches))
		for i, wt := range e.Branches {
			w, err := ac.collect(wt.When)
			if err != nil {
				return e, err
			}
			t, err := ac.collect(wt.Then)
			if err != nil {
				return e, err
			}
			branches[i] = ast.WhenThen{When: w, Then: t}
		}
		e.Branches = branches
		if e.Else != nil {
			els, err := ac.collect(*e.Else)
			if err != nil {
				return e, err
			}
			e.Else = &els
		}
	case ast.ExprIf:
		c, err := ac.collect(*e.IfCond)
		if err != nil {
			return e, err
		}
		t, err := ac.collect(*e.IfThen)
		if err != nil {
			return e, err
		}
		el, err := ac.collect(*e.IfElse)
		if err != nil {
			return e, err
		}
		e.IfCond, e.IfThen, e.IfElse = &c, &t, &el
	case ast.ExprCoalesce:
		args := make([]ast.Expression, len(e.Args))
		for i, a := range e.Args {
			na, err := ac.collect(a)
			if err != nil {
				return e, err
			}
			args[i] = na
		}
		e.Args = args
	case ast.ExprNullIf:
		a, err := ac.collect(*e.NullIfA)
		if err != nil {
			return e, err
		}
		b, err := ac.collect(*e.NullIfB)
		if err != nil {
			return e, err
		}
		e.NullIfA, e.NullIfB = &a, &b
	}
	return e, nil
}

func (ac *aggregateCollector) liftAggregate(call ast.Expression) (ast.Expression, error) {
	if call.Distinct && len(call.Args) == 1 {
		return ac.liftDistinctAggregate(call)
	}
	if call.FuncName == "GROUP_CONCAT" && len(call.ConcatOrderBy) > 0 {
		return ac.liftGroupConcatOrdered(call)
	}
	args := make([]any, 0, len(call.Args))
	for _, a := range call.Args {
		if a.Kind == ast.ExprStar {
			args = append(args, nil)
			continue
		}
		lw := &exprLowerer{cat: ac.cat, sc: ac.sc}
		v, err := lw.lower(a)
		if err != nil {
			return call, err
		}
		args = append(args, v)
	}
	accum, err := ac.cat.Apply(call.FuncName, args)
	if err != nil {
		return call, err
	}
	ac.counter++
	name := fmt.Sprintf("agg%d", ac.counter)
	ac.fields[name] = accum
	return ast.Column(ast.Identifier{Name: name}), nil
}

// liftDistinctAggregate rewrites COUNT(DISTINCT x) into a $addToSet
// accumulator over the distinct values followed by $size, since no native
// Mongo accumulator takes a DISTINCT modifier directly. DISTINCT on any
// other aggregate is rejected with UnsupportedConstruct.
func (ac *aggregateCollector) liftDistinctAggregate(call ast.Expression) (ast.Expression, error) {
	lw := &exprLowerer{cat: ac.cat, sc: ac.sc}
	v, err := lw.lower(call.Args[0])
	if err != nil {
		return call, err
	}
	ac.counter++
	setName := fmt.Sprintf("distinctSet%d", ac.counter)
	ac.fields[setName] = bson.M{"$addToSet": v}
	switch call.FuncName {
	case "COUNT":
		return ast.Call(sizeMarker, []ast.Expression{ast.Column(ast.Identifier{Name: setName})}, false, nil), nil
	default:
		return ast.Expression{}, xerrors.Newf(xerrors.UnsupportedConstruct, "%s(DISTINCT ...) is only supported for COUNT", call.FuncName)
	}
}

// liftGroupConcatOrdered handles GROUP_CONCAT(expr ORDER BY key [ASC|DESC]
// [SEPARATOR 's']): the plain $push + $reduce recipe in
// catalog/aggregatefn.go can't express ordering, since $push preserves
// arrival order into the group rather than any per-field sort, so the
// pushed elements are tagged with their sort key and reordered with
// $sortArray before the reduce joins them. Only a single ORDER BY key is
// supported; GROUP_CONCAT's multi-key form is not.
func (ac *aggregateCollector) liftGroupConcatOrdered(call ast.Expression) (ast.Expression, error) {
	if len(call.ConcatOrderBy) != 1 {
		return call, xerrors.New(xerrors.UnsupportedConstruct, "GROUP_CONCAT ORDER BY supports exactly one key")
	}
	if len(call.Args) == 0 {
		return call, xerrors.New(xerrors.ArityMismatch, "GROUP_CONCAT requires a value expression")
	}
	lw := &exprLowerer{cat: ac.cat, sc: ac.sc}
	value, err := lw.lower(call.Args[0])
	if err != nil {
		return call, err
	}
	separator := ","
	if len(call.Args) > 1 {
		if call.Args[1].Kind != ast.ExprLit || call.Args[1].Lit.Kind != ast.LitString {
			return call, xerrors.New(xerrors.UnsupportedArgument, "GROUP_CONCAT SEPARATOR must be a string literal")
		}
		separator = call.Args[1].Lit.Str
	}
	item := call.ConcatOrderBy[0]
	key, err := lw.lower(item.Expr)
	if err != nil {
		return call, err
	}
	dir := -1
	if item.Asc {
		dir = 1
	}

	ac.counter++
	name := fmt.Sprintf("agg%d", ac.counter)
	ac.fields[name] = bson.M{"$reduce": bson.M{
		"input": bson.M{"$sortArray": bson.M{
			"input":  bson.M{"$push": bson.M{"v": value, "k": key}},
			"sortBy": bson.M{"k": dir},
		}},
		"initialValue": "",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$value", ""}}, "$$this.v",
			bson.M{"$concat": bson.A{"$$value", separator, "$$this.v"}},
		}},
	}}
	return ast.Column(ast.Identifier{Name: name}), nil
}

// projectProjections builds an explicit $project document for a projection
// list. Callers must handle a bare SELECT * themselves — it has no lowering
// as an inclusion/exclusion document, since $project defaults to excluding
// anything not named, which can't express "every discovered field".
func (e *Engine) projectProjections(projections []ast.Projection, sc *scope) (bson.D, error) {
	proj := bson.D{{Key: "_id", Value: 0}}
	for _, p := range projections {
		if p.Expr.Kind == ast.ExprStar {
			return nil, xerrors.New(xerrors.UnsupportedConstruct, "SELECT * must be resolved by the caller before building an explicit projection")
		}
		lw := &exprLowerer{cat: e.cat, sc: sc}
		v, err := lw.lower(p.Expr)
		if err != nil {
			return nil, err
		}
		name := p.Alias
		if name == "" {
			if p.Expr.Kind == ast.ExprColumn {
				name = p.Expr.Column.Name
			} else {
				return nil, xerrors.New(xerrors.UnsupportedConstruct, "computed projection requires an alias")
			}
		}
		proj = append(proj, bson.E{Key: name, Value: v})
	}
	return proj, nil
}

// e.projectionStage builds the $project stage used inside a subquery's own
// pipeline (lowerCorrelatedSubPipeline): nil when the subquery selects *,
// so the lookup carries the whole document through unchanged.
func (e *Engine) projectionStage(stmt *ast.SelectStatement, sc *scope) (bson.D, error) {
	for _, p := range stmt.Projections {
		if p.Expr.Kind == ast.ExprStar {
			return nil, nil
		}
	}
	proj, err := e.projectProjections(stmt.Projections, sc)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$project", Value: proj}}, nil
}

func projStageToD(proj bson.D) bson.D {
	return bson.D{{Key: "$project", Value: proj}}
}
