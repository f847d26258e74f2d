package catalog

import "go.mongodb.org/mongo-driver/bson"

// registerJSON covers the JSON_* family. MariaDB's JSON path syntax
// ($.field, $.arr[0]) is deliberately not parsed into a structured path
// here — this catalogue only handles the common single-level-field case,
// which is what the lowering engine's static Expression tree can express
// without a client-side JSON-path evaluator (forbidden by the purely
// syntactic translation contract).
func registerJSON(c *Catalog) {
	c.register(Entry{Name: "JSON_EXTRACT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		path, _ := args[1].(string)
		field := trimJSONPath(path)
		return op1("$getField", bson.M{"field": field, "input": args[0]}), nil
	}})
	c.register(Entry{Name: "JSON_UNQUOTE", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$toString", args[0]), nil
	}})
	c.register(Entry{Name: "JSON_OBJECT", Kind: ScalarFunc, MinArgs: 0, MaxArgs: -1, Lower: func(args []any) (any, error) {
		obj := bson.M{}
		for i := 0; i+1 < len(args); i += 2 {
			key, _ := args[i].(string)
			obj[key] = args[i+1]
		}
		return obj, nil
	}})
	c.register(Entry{Name: "JSON_ARRAY", Kind: ScalarFunc, MinArgs: 0, MaxArgs: -1, Lower: func(args []any) (any, error) {
		arr := bson.A{}
		for _, a := range args {
			arr = append(arr, a)
		}
		return arr, nil
	}})
	c.register(Entry{Name: "JSON_KEYS", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$objectToArray", args[0]), nil
	}})
	c.register(Entry{Name: "JSON_LENGTH", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$size", op1("$objectToArray", args[0])), nil
	}})
	c.register(Entry{Name: "JSON_CONTAINS", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return opN("$in", args[1], args[0]), nil
	}})
	c.register(Entry{Name: "JSON_SET", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		path, _ := args[1].(string)
		field := trimJSONPath(path)
		return op1("$setField", bson.M{"field": field, "input": args[0], "value": args[2]}), nil
	}})
	c.register(Entry{Name: "JSON_REPLACE", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		path, _ := args[1].(string)
		field := trimJSONPath(path)
		return op1("$setField", bson.M{"field": field, "input": args[0], "value": args[2]}), nil
	}})
	c.register(Entry{Name: "JSON_REMOVE", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		path, _ := args[1].(string)
		field := trimJSONPath(path)
		return op1("$unsetField", bson.M{"field": field, "input": args[0]}), nil
	}})
}

func trimJSONPath(path string) string {
	if len(path) >= 2 && path[0] == '$' && path[1] == '.' {
		return path[2:]
	}
	return path
}
