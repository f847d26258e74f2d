package parser

import (
	"testing"

	"github.com/sqlmongo/translator/ast"
)

func mustParse(t *testing.T, sql string) *ast.Statement {
	t.Helper()
	stmt, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", sql, err)
	}
	return stmt
}

func TestParseSimpleSelect(t *testing.T) {
	stmt := mustParse(t, "SELECT customerName FROM customers WHERE customerNumber > 100 ORDER BY customerName ASC LIMIT 10")
	if stmt.Kind != ast.StmtSelect {
		t.Fatalf("Kind = %v, want StmtSelect", stmt.Kind)
	}
	sel := stmt.Select
	if len(sel.Projections) != 1 || sel.Projections[0].Expr.Column.Name != "customerName" {
		t.Fatalf("projections = %+v", sel.Projections)
	}
	if sel.From.Name != "customers" {
		t.Fatalf("from = %+v", sel.From)
	}
	if sel.Where == nil || sel.Where.BinOp != ast.Gt {
		t.Fatalf("where = %+v", sel.Where)
	}
	if len(sel.OrderBy) != 1 || !sel.OrderBy[0].Asc {
		t.Fatalf("order by = %+v", sel.OrderBy)
	}
	if sel.Limit == nil || *sel.Limit != 10 {
		t.Fatalf("limit = %v", sel.Limit)
	}
}

func TestParseKeywordsCaseInsensitive(t *testing.T) {
	upper := mustParse(t, "SELECT a FROM t WHERE b = 1")
	lower := mustParse(t, "select a from t where b = 1")
	if upper.Select.From.Name != lower.Select.From.Name {
		t.Fatalf("case-insensitive parse mismatch: %+v vs %+v", upper, lower)
	}
}

func TestParseBacktickIdentifierTransparent(t *testing.T) {
	plain := mustParse(t, "SELECT a FROM t")
	quoted := mustParse(t, "SELECT `a` FROM `t`")
	if plain.Select.From.Name != quoted.Select.From.Name {
		t.Fatalf("backtick table name should be transparent: %q vs %q", plain.Select.From.Name, quoted.Select.From.Name)
	}
	if plain.Select.Projections[0].Expr.Column.Name != quoted.Select.Projections[0].Expr.Column.Name {
		t.Fatalf("backtick column name should be transparent")
	}
}

func TestParseLimitOffsetCommaForm(t *testing.T) {
	stmt := mustParse(t, "SELECT a FROM t LIMIT 5, 20")
	sel := stmt.Select
	if sel.Offset == nil || *sel.Offset != 5 {
		t.Fatalf("offset = %v, want 5", sel.Offset)
	}
	if sel.Limit == nil || *sel.Limit != 20 {
		t.Fatalf("limit = %v, want 20", sel.Limit)
	}
}

func TestParseLimitOffsetKeywordForm(t *testing.T) {
	stmt := mustParse(t, "SELECT a FROM t LIMIT 20 OFFSET 5")
	sel := stmt.Select
	if sel.Offset == nil || *sel.Offset != 5 {
		t.Fatalf("offset = %v, want 5", sel.Offset)
	}
	if sel.Limit == nil || *sel.Limit != 20 {
		t.Fatalf("limit = %v, want 20", sel.Limit)
	}
}

func TestParseJoinChain(t *testing.T) {
	stmt := mustParse(t, "SELECT c.customerName, o.orderDate FROM customers c LEFT JOIN orders o ON c.customerNumber = o.customerNumber")
	sel := stmt.Select
	if sel.From.Alias != "c" {
		t.Fatalf("base alias = %q", sel.From.Alias)
	}
	if len(sel.Joins) != 1 {
		t.Fatalf("expected 1 join, got %d", len(sel.Joins))
	}
	j := sel.Joins[0]
	if j.Kind != ast.LeftJoin || j.Target.Alias != "o" {
		t.Fatalf("join = %+v", j)
	}
	if j.On == nil || j.On.BinOp != ast.Eq {
		t.Fatalf("join ON = %+v", j.On)
	}
}

func TestParseUsingDesugarsToOn(t *testing.T) {
	stmt := mustParse(t, "SELECT * FROM a JOIN b USING (id)")
	j := stmt.Select.Joins[0]
	if j.On == nil || j.On.BinOp != ast.Eq {
		t.Fatalf("USING should desugar to an ON equality, got %+v", j.On)
	}
}

func TestParseGroupByHaving(t *testing.T) {
	stmt := mustParse(t, "SELECT country, COUNT(*) AS n FROM customers GROUP BY country HAVING COUNT(*) > 5 ORDER BY n DESC")
	sel := stmt.Select
	if len(sel.GroupBy) != 1 || sel.GroupBy[0].Column.Name != "country" {
		t.Fatalf("group by = %+v", sel.GroupBy)
	}
	if sel.Having == nil {
		t.Fatal("having clause missing")
	}
	if len(sel.OrderBy) != 1 || sel.OrderBy[0].Asc {
		t.Fatalf("order by desc = %+v", sel.OrderBy)
	}
	if sel.Projections[1].Alias != "n" {
		t.Fatalf("projection alias = %q", sel.Projections[1].Alias)
	}
	if sel.Projections[1].Expr.Kind != ast.ExprFunctionCall || sel.Projections[1].Expr.FuncName != "COUNT" {
		t.Fatalf("COUNT(*) projection = %+v", sel.Projections[1].Expr)
	}
}

func TestParseBetweenDesugarsToConjunction(t *testing.T) {
	stmt := mustParse(t, "SELECT a FROM t WHERE x BETWEEN 1 AND 10")
	where := stmt.Select.Where
	if where.BinOp != ast.And {
		t.Fatalf("BETWEEN must desugar to AND, got %+v", where)
	}
	if where.Left.BinOp != ast.Gte || where.Right.BinOp != ast.Lte {
		t.Fatalf("BETWEEN operands = %+v / %+v", where.Left, where.Right)
	}
}

func TestParseIsNullVsIsNotNull(t *testing.T) {
	isNull := mustParse(t, "SELECT a FROM t WHERE a IS NULL")
	isNotNull := mustParse(t, "SELECT a FROM t WHERE a IS NOT NULL")
	if isNull.Select.Where.BinOp != ast.IsNull {
		t.Fatalf("IS NULL = %+v", isNull.Select.Where)
	}
	if isNotNull.Select.Where.BinOp != ast.IsNotNull {
		t.Fatalf("IS NOT NULL = %+v", isNotNull.Select.Where)
	}
}

func TestParseSubqueryKindByPosition(t *testing.T) {
	in := mustParse(t, "SELECT a FROM t WHERE a IN (SELECT b FROM u)")
	if in.Select.Where.Right.SubqueryKind != ast.InSub {
		t.Fatalf("IN subquery kind = %v", in.Select.Where.Right.SubqueryKind)
	}
	exists := mustParse(t, "SELECT a FROM t WHERE EXISTS (SELECT 1 FROM u WHERE u.t_id = t.id)")
	if exists.Select.Where.Kind != ast.ExprSubquery || exists.Select.Where.SubqueryKind != ast.Exists {
		t.Fatalf("EXISTS subquery kind = %+v", exists.Select.Where)
	}
	derived := mustParse(t, "SELECT x.a FROM (SELECT a FROM t) x")
	if derived.Select.From.Derived == nil || derived.Select.From.Alias != "x" {
		t.Fatalf("derived table = %+v", derived.Select.From)
	}
}

func TestParseCaseExpression(t *testing.T) {
	stmt := mustParse(t, "SELECT CASE WHEN creditLimit > 50000 THEN 'High' ELSE 'Low' END AS tier FROM customers")
	proj := stmt.Select.Projections[0]
	if proj.Expr.Kind != ast.ExprCase {
		t.Fatalf("expected ExprCase, got %+v", proj.Expr)
	}
	if len(proj.Expr.Branches) != 1 || proj.Expr.Else == nil {
		t.Fatalf("CASE branches = %+v", proj.Expr)
	}
}

func TestParseIfFunction(t *testing.T) {
	stmt := mustParse(t, "SELECT IF(creditLimit > 50000, 'High', 'Low') AS tier FROM customers")
	proj := stmt.Select.Projections[0].Expr
	if proj.Kind != ast.ExprIf {
		t.Fatalf("expected ExprIf, got %+v", proj)
	}
}

func TestParseWithCTE(t *testing.T) {
	stmt := mustParse(t, "WITH recent AS (SELECT id FROM orders WHERE orderDate > '2024-01-01') SELECT id FROM recent")
	if stmt.Kind != ast.StmtWith {
		t.Fatalf("expected StmtWith, got %v", stmt.Kind)
	}
	if len(stmt.CTEs) != 1 || stmt.CTEs[0].Name != "recent" {
		t.Fatalf("ctes = %+v", stmt.CTEs)
	}
	if stmt.Body.Kind != ast.StmtSelect || stmt.Body.Select.From.Name != "recent" {
		t.Fatalf("body = %+v", stmt.Body)
	}
}

func TestParseInsertUpdateDelete(t *testing.T) {
	ins := mustParse(t, "INSERT INTO customers (customerName, creditLimit) VALUES ('Ann', 1000), ('Bo', 2000)")
	if ins.Kind != ast.StmtInsert || len(ins.InsertRows) != 2 || len(ins.InsertColumns) != 2 {
		t.Fatalf("insert = %+v", ins)
	}

	upd := mustParse(t, "UPDATE customers SET contactFirstName = 'Jane' WHERE customerNumber = 500")
	if upd.Kind != ast.StmtUpdate || len(upd.UpdateAssignments) != 1 || upd.UpdateWhere == nil {
		t.Fatalf("update = %+v", upd)
	}

	del := mustParse(t, "DELETE FROM customers WHERE customerNumber = 500")
	if del.Kind != ast.StmtDelete || del.DeleteWhere == nil {
		t.Fatalf("delete = %+v", del)
	}
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	if _, err := Parse("SELECT a FROM t u bogus"); err == nil {
		t.Fatal("expected SyntaxError for trailing tokens")
	}
}

func TestParseEmptyStatementErrors(t *testing.T) {
	if _, err := Parse("   "); err == nil {
		t.Fatal("expected UnexpectedEnd for an empty statement")
	}
	if _, err := Parse(";;;"); err == nil {
		t.Fatal("expected UnexpectedEnd for a statement of only semicolons")
	}
}

func TestParseManySplitsOnTopLevelSemicolons(t *testing.T) {
	stmts, err := ParseMany("SELECT a FROM t; SELECT b FROM u;")
	if err != nil {
		t.Fatalf("ParseMany failed: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
}

