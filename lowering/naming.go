package lowering

import (
	"fmt"

	"github.com/jinzhu/inflection"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/xerrors"
)

// collectionName maps a SQL table name onto the Mongo collection the
// translator targets. MariaDB table names are taken verbatim except for
// the conventional pluralisation MongoDB schemas use for collections.
func collectionName(table string) string {
	return inflection.Plural(table)
}

// resolveOrderByPositions rewrites any ORDER BY term that is a positional
// integer literal (`ORDER BY 2`) into a reference to the corresponding
// projection's output name, per the clause sub-parser contract that ORDER BY
// may name a column, a projection alias, or a 1-based projection position.
// Alias references need no rewriting: they already parse as a bare
// ExprColumn whose name happens to match a projection's alias, and every
// lowering path that builds a $sort resolves output field names by that
// same string, not by re-walking the FROM scope.
func resolveOrderByPositions(items []ast.OrderItem, projections []ast.Projection) ([]ast.OrderItem, error) {
	out := make([]ast.OrderItem, len(items))
	for i, it := range items {
		if it.Expr.Kind != ast.ExprLit || it.Expr.Lit.Kind != ast.LitInteger {
			out[i] = it
			continue
		}
		pos := it.Expr.Lit.Int
		if pos < 1 || int(pos) > len(projections) {
			return nil, orderByPositionError(pos, len(projections))
		}
		p := projections[pos-1]
		name := p.Alias
		if name == "" && p.Expr.Kind == ast.ExprColumn {
			name = p.Expr.Column.Name
		}
		if name == "" {
			return nil, orderByPositionError(pos, len(projections))
		}
		out[i] = ast.OrderItem{Expr: ast.Column(ast.Identifier{Name: name}), Asc: it.Asc}
	}
	return out, nil
}

func orderByPositionError(pos int64, n int) error {
	return xerrors.New(xerrors.UnsupportedConstruct, fmt.Sprintf("ORDER BY position %d is out of range for %d projection(s)", pos, n))
}
