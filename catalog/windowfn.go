package catalog

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/xerrors"
)

// registerWindow covers ROW_NUMBER/RANK/DENSE_RANK/NTILE/LAG/LEAD. Every
// entry's recipe produces the "output.<alias>" expression of a
// $setWindowFields stage; the lowering engine supplies partitionBy/sortBy
// separately from the OverClause.
func registerWindow(c *Catalog) {
	c.register(Entry{Name: "ROW_NUMBER", Kind: WindowFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
		return bson.M{"$documentNumber": bson.M{}}, nil
	}})
	c.register(Entry{Name: "RANK", Kind: WindowFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
		return bson.M{"$rank": bson.M{}}, nil
	}})
	c.register(Entry{Name: "DENSE_RANK", Kind: WindowFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
		return bson.M{"$denseRank": bson.M{}}, nil
	}})
	c.register(Entry{Name: "NTILE", Kind: WindowFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return bson.M{"$ntile": bson.M{"buckets": args[0]}}, nil
	}})
	c.register(Entry{Name: "LAG", Kind: WindowFunc, MinArgs: 1, MaxArgs: 2, Lower: func(args []any) (any, error) {
		// $shift.by must be a constant integer literal, not an expression
		// document, so the offset is negated in Go rather than with $multiply.
		by, ok := arg(args, 1, int64(1)).(int64)
		if !ok {
			return nil, xerrors.New(xerrors.UnsupportedArgument, "LAG offset must be an integer literal")
		}
		return bson.M{"$shift": bson.M{"output": args[0], "by": -by}}, nil
	}})
	c.register(Entry{Name: "LEAD", Kind: WindowFunc, MinArgs: 1, MaxArgs: 2, Lower: func(args []any) (any, error) {
		by := arg(args, 1, int64(1))
		return bson.M{"$shift": bson.M{"output": args[0], "by": by}}, nil
	}})
}
