package catalog

import "go.mongodb.org/mongo-driver/bson"

// Aggregate recipes produce a $group accumulator expression. Calls carrying
// the DISTINCT flag never reach these recipes: the lowering engine rewrites
// COUNT(DISTINCT x) to $addToSet + $size and rejects DISTINCT on any other
// aggregate, so these recipes only cover the non-distinct case.
func registerAggregate(c *Catalog) {
	c.register(Entry{Name: "COUNT", Kind: AggregateFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		if args[0] == nil {
			return bson.M{"$sum": 1}, nil
		}
		return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$ne": bson.A{args[0], nil}}, 1, 0}}}, nil
	}})
	sumLike := func(name, operator string) {
		c.register(Entry{Name: name, Kind: AggregateFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
			return op1(operator, args[0]), nil
		}})
	}
	sumLike("SUM", "$sum")
	sumLike("AVG", "$avg")
	sumLike("MIN", "$min")
	sumLike("MAX", "$max")
	round6 := func(inner any) any {
		return op1("$round", bson.A{inner, 6})
	}
	stddev := func(name, operator string) {
		c.register(Entry{Name: name, Kind: AggregateFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
			return round6(op1(operator, args[0])), nil
		}})
	}
	stddev("STDDEV_POP", "$stdDevPop")
	stddev("STDDEV_SAMP", "$stdDevSamp")
	// variance has no direct MongoDB accumulator; composed from stdDev^2.
	variance := func(name, stddevOp string) {
		c.register(Entry{Name: name, Kind: AggregateFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
			sd := op1(stddevOp, args[0])
			return round6(opN("$pow", sd, 2)), nil
		}})
	}
	variance("VAR_POP", "$stdDevPop")
	variance("VAR_SAMP", "$stdDevSamp")
	c.register(Entry{Name: "GROUP_CONCAT", Kind: AggregateFunc, MinArgs: 1, MaxArgs: 2, Lower: func(args []any) (any, error) {
		// args[1] is the SEPARATOR clause's string, when the call had one;
		// GROUP_CONCAT's own ORDER BY clause is handled upstream in
		// lowering/aggregate.go (liftGroupConcatOrdered), since ordering the
		// pushed values needs the group's own $sortArray, not a plain reduce.
		separator, _ := arg(args, 1, ",").(string)
		joined := op1("$push", args[0])
		return op1("$reduce", bson.M{
			"input": joined, "initialValue": "",
			"in": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$$value", ""}}, "$$this",
				op1("$concat", bson.A{"$$value", separator, "$$this"}),
			}},
		}), nil
	}})
	// aggregate-form bitwise accumulators have no native MongoDB accumulator;
	// expressed via $accumulator is avoided (requires server-side JS, which
	// this translator never emits) — instead composed from $push + $reduce.
	bitAgg := func(name string, combine func(a, b any) any) {
		c.register(Entry{Name: name, Kind: AggregateFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
			pushed := op1("$push", args[0])
			return op1("$reduce", bson.M{
				"input": pushed, "initialValue": 0,
				"in": combine("$$value", "$$this"),
			}), nil
		}})
	}
	bitAgg("BIT_AND", func(a, b any) any { return opN("$bitAnd", a, b) })
	bitAgg("BIT_OR", func(a, b any) any { return opN("$bitOr", a, b) })
	bitAgg("BIT_XOR", func(a, b any) any { return opN("$bitXor", a, b) })
}
