package catalog

import "go.mongodb.org/mongo-driver/bson"

// registerRegex covers REGEXP/RLIKE as scalar boolean predicates and the
// REGEXP_* family. Unlike LIKE pattern conversion (which escapes a literal
// into an anchored regex), these take the user's pattern as a genuine
// regular expression, matching MariaDB semantics.
func registerRegex(c *Catalog) {
	matchFn := func(name string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
			return op1("$regexMatch", bson.M{"input": args[0], "regex": args[1]}), nil
		}})
	}
	matchFn("REGEXP")
	matchFn("RLIKE")
	c.register(Entry{Name: "REGEXP_INSTR", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		found := op1("$regexFind", bson.M{"input": args[0], "regex": args[1]})
		idx := op1("$getField", bson.M{"field": "idx", "input": found})
		return opN("$add", idx, 1), nil
	}})
	c.register(Entry{Name: "REGEXP_SUBSTR", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		found := op1("$regexFind", bson.M{"input": args[0], "regex": args[1]})
		return op1("$getField", bson.M{"field": "match", "input": found}), nil
	}})
	c.register(Entry{Name: "REGEXP_REPLACE", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		return regexReplaceExpr(args[0], args[1], args[2]), nil
	}})
}

// regexReplaceExpr performs a genuine regex-based global replace: $replaceAll
// only does literal substring matching, so the pattern is run through
// $regexFindAll to collect every match's position and length, then $reduce
// splices the replacement in at each match while copying the untouched text
// in between, finishing with whatever tail follows the last match.
func regexReplaceExpr(str, pattern, replacement any) any {
	matches := op1("$regexFindAll", bson.M{"input": str, "regex": pattern})
	idx := "$$this.idx"
	matchLen := op1("$strLenCP", "$$this.match")
	reduced := op1("$reduce", bson.M{
		"input":        matches,
		"initialValue": bson.M{"pos": 0, "out": ""},
		"in": bson.M{
			"pos": opN("$add", idx, matchLen),
			"out": op1("$concat", bson.A{
				"$$value.out",
				op1("$substrCP", bson.A{str, "$$value.pos", opN("$subtract", idx, "$$value.pos")}),
				replacement,
			}),
		},
	})
	return bson.M{
		"$let": bson.M{
			"vars": bson.M{"r": reduced},
			"in": op1("$concat", bson.A{
				"$$r.out",
				op1("$substrCP", bson.A{str, "$$r.pos", opN("$subtract", op1("$strLenCP", str), "$$r.pos")}),
			}),
		},
	}
}
