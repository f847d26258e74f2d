package catalog

import "go.mongodb.org/mongo-driver/bson"

func registerMath(c *Catalog) {
	unary := func(name, operator string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
			return op1(operator, args[0]), nil
		}})
	}
	unary("ABS", "$abs")
	unary("CEIL", "$ceil")
	unary("CEILING", "$ceil")
	unary("FLOOR", "$floor")
	unary("SQRT", "$sqrt")
	unary("EXP", "$exp")
	unary("LN", "$ln")
	unary("LOG2", "$log2")
	unary("LOG10", "$log10")
	unary("SIN", "$sin")
	unary("COS", "$cos")
	unary("TAN", "$tan")
	unary("ASIN", "$asin")
	unary("ACOS", "$acos")
	unary("ATAN", "$atan")
	unary("COT", "$cot")
	unary("SIGN", "$sign")
	unary("DEGREES", "$radiansToDegrees")
	unary("RADIANS", "$degreesToRadians")

	c.register(Entry{Name: "ROUND", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$round", bson.A{args[0], arg(args, 1, 0)}), nil
	}})
	c.register(Entry{Name: "TRUNCATE", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$trunc", bson.A{args[0], args[1]}), nil
	}})
	c.register(Entry{Name: "MOD", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return opN("$mod", args[0], args[1]), nil
	}})
	pow := func(name string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
			return opN("$pow", args[0], args[1]), nil
		}})
	}
	pow("POWER")
	pow("POW")
	c.register(Entry{Name: "LOG", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 2, Lower: func(args []any) (any, error) {
		if len(args) == 2 {
			return opN("$log", args[1], args[0]), nil
		}
		return op1("$ln", args[0]), nil
	}})
	c.register(Entry{Name: "ATAN2", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return opN("$atan2", args[0], args[1]), nil
	}})
	c.register(Entry{Name: "GREATEST", Kind: ScalarFunc, MinArgs: 1, MaxArgs: -1, Lower: func(args []any) (any, error) {
		return opN("$max", args...), nil
	}})
	c.register(Entry{Name: "LEAST", Kind: ScalarFunc, MinArgs: 1, MaxArgs: -1, Lower: func(args []any) (any, error) {
		return opN("$min", args...), nil
	}})
	c.register(Entry{Name: "RAND", Kind: ScalarFunc, MinArgs: 0, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return bson.M{"$rand": bson.M{}}, nil
	}})
	c.register(Entry{Name: "PI", Kind: ScalarFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
		return 3.141592653589793, nil
	}})
	bitwise := func(name, operator string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
			return opN(operator, args[0], args[1]), nil
		}})
	}
	bitwise("BIT_AND", "$bitAnd")
	bitwise("BIT_OR", "$bitOr")
	bitwise("BIT_XOR", "$bitXor")

	c.register(Entry{Name: "BIT_SHIFT_LEFT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return opN("$multiply", args[0], opN("$pow", 2, args[1])), nil
	}})
	c.register(Entry{Name: "BIT_SHIFT_RIGHT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$floor", opN("$divide", args[0], opN("$pow", 2, args[1]))), nil
	}})
}
