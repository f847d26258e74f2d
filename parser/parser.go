// Package parser is the recursive-descent parser over a token reader. It
// produces a Statement IR (ast.Statement); no layer here touches the SQL
// source string directly, and no regex-based matching is used anywhere in
// this package — every clause is recognised by consuming tokens off the
// reader.
package parser

import (
	"strconv"

	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/lexer"
	"github.com/sqlmongo/translator/reader"
	"github.com/sqlmongo/translator/token"
	"github.com/sqlmongo/translator/xerrors"
)

// Parser holds the cursor over one statement's tokens.
type Parser struct {
	r *reader.Reader
}

// Parse tokenizes sql and parses exactly one statement, erroring if
// trailing tokens remain (beyond an optional terminating semicolon).
func Parse(sql string) (*ast.Statement, error) {
	toks := lexer.Tokenize(sql)
	return ParseTokens(toks)
}

// ParseTokens parses one statement directly from a token slice, used by
// ParseMany to hand each statement its own token range.
func ParseTokens(toks []token.Token) (*ast.Statement, error) {
	p := &Parser{r: reader.New(toks)}
	for p.matchKind(token.Semicolon) {
	}
	if p.cur().Kind == token.EOF {
		return nil, xerrors.New(xerrors.UnexpectedEnd, "empty statement")
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	for p.matchKind(token.Semicolon) {
	}
	if !p.r.AtEnd() {
		return nil, syntaxErrorAt(p.cur(), "end of statement")
	}
	return &stmt, nil
}

// ParseMany splits sql on top-level semicolons (ones not nested inside
// parentheses) and parses each resulting statement independently.
func ParseMany(sql string) ([]*ast.Statement, error) {
	toks := lexer.Tokenize(sql)
	var stmts []*ast.Statement
	var cur []token.Token
	depth := 0
	flush := func() error {
		trimmed := cur
		cur = nil
		// drop leading/trailing semicolons and empty ranges
		nonEmpty := false
		for _, t := range trimmed {
			if t.Kind != token.Semicolon && t.Kind != token.EOF {
				nonEmpty = true
				break
			}
		}
		if !nonEmpty {
			return nil
		}
		trimmed = append(trimmed, token.Token{Kind: token.EOF})
		stmt, err := ParseTokens(trimmed)
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
		return nil
	}
	for _, t := range toks {
		if t.Kind == token.EOF {
			break
		}
		if t.Kind == token.LParen {
			depth++
		}
		if t.Kind == token.RParen {
			depth--
		}
		if t.Kind == token.Semicolon && depth == 0 {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		cur = append(cur, t)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) cur() token.Token  { return p.r.Peek(0) }
func (p *Parser) peekAt(k int) token.Token { return p.r.Peek(k) }

func (p *Parser) matchKeyword(kw string) bool {
	_, ok := p.r.ExpectKeyword(kw)
	return ok
}

func (p *Parser) peekKeyword(kw string) bool { return p.cur().IsKeyword(kw) }

func (p *Parser) expectKeyword(kw string) (token.Token, error) {
	if tok, ok := p.r.ExpectKeyword(kw); ok {
		return tok, nil
	}
	return token.Token{}, syntaxErrorAt(p.cur(), kw)
}

func (p *Parser) matchKind(k token.Kind) bool {
	_, ok := p.r.ExpectKind(k)
	return ok
}

func (p *Parser) expectKind(k token.Kind, desc string) (token.Token, error) {
	if tok, ok := p.r.ExpectKind(k); ok {
		return tok, nil
	}
	return token.Token{}, syntaxErrorAt(p.cur(), desc)
}

func (p *Parser) expectName() (string, error) {
	tok := p.cur()
	if tok.Kind == token.Name {
		p.r.Next()
		return tok.Value, nil
	}
	return "", syntaxErrorAt(tok, "identifier")
}

// parseStatement dispatches on the first keyword.
func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.peekKeyword("WITH"):
		return p.parseWith()
	case p.peekKeyword("SELECT"):
		sel, err := p.parseSelect()
		if err != nil {
			return ast.Statement{}, err
		}
		return ast.SelectStmt(*sel), nil
	case p.peekKeyword("INSERT"):
		return p.parseInsert()
	case p.peekKeyword("UPDATE"):
		return p.parseUpdate()
	case p.peekKeyword("DELETE"):
		return p.parseDelete()
	default:
		return ast.Statement{}, syntaxErrorAt(p.cur(), "SELECT, WITH, INSERT, UPDATE or DELETE")
	}
}

func (p *Parser) parseWith() (ast.Statement, error) {
	if _, err := p.expectKeyword("WITH"); err != nil {
		return ast.Statement{}, err
	}
	recursive := p.matchKeyword("RECURSIVE")
	var ctes []ast.CTE
	for {
		name, err := p.expectName()
		if err != nil {
			return ast.Statement{}, err
		}
		var cols []string
		if p.matchKind(token.LParen) {
			for {
				c, err := p.expectName()
				if err != nil {
					return ast.Statement{}, err
				}
				cols = append(cols, c)
				if !p.matchKind(token.Comma) {
					break
				}
			}
			if _, err := p.expectKind(token.RParen, ")"); err != nil {
				return ast.Statement{}, err
			}
		}
		if _, err := p.expectKeyword("AS"); err != nil {
			return ast.Statement{}, err
		}
		if _, err := p.expectKind(token.LParen, "("); err != nil {
			return ast.Statement{}, err
		}
		inner, err := p.parseSelect()
		if err != nil {
			return ast.Statement{}, err
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return ast.Statement{}, err
		}
		ctes = append(ctes, ast.CTE{Name: name, Columns: cols, Query: *inner, Recursive: recursive})
		if !p.matchKind(token.Comma) {
			break
		}
	}
	body, err := p.parseStatement()
	if err != nil {
		return ast.Statement{}, err
	}
	return ast.WithStmt(ctes, body), nil
}

func (p *Parser) parseSelect() (*ast.SelectStatement, error) {
	if _, err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	distinct := p.matchKeyword("DISTINCT")
	projections, err := p.parseProjectionList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	var joins []ast.JoinOp
	for p.atJoinStart() {
		j, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		joins = append(joins, j)
	}
	var where *ast.Expression
	if p.matchKeyword("WHERE") {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		where = &e
	}
	var groupBy []ast.Expression
	if p.matchKeyword("GROUP") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		groupBy, err = p.parseExprList()
		if err != nil {
			return nil, err
		}
	}
	var having *ast.Expression
	if p.matchKeyword("HAVING") {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		having = &e
	}
	var orderBy []ast.OrderItem
	if p.matchKeyword("ORDER") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		orderBy, err = p.parseOrderByList()
		if err != nil {
			return nil, err
		}
	}
	var limit, offset *int64
	if p.matchKeyword("LIMIT") {
		first, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		switch {
		case p.matchKind(token.Comma):
			second, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			offset, limit = &first, &second
		case p.matchKeyword("OFFSET"):
			second, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			limit, offset = &first, &second
		default:
			limit = &first
		}
	}
	return &ast.SelectStatement{
		Projections: projections,
		From:        from,
		Joins:       joins,
		Where:       where,
		GroupBy:     groupBy,
		Having:      having,
		OrderBy:     orderBy,
		Limit:       limit,
		Offset:      offset,
		Distinct:    distinct,
	}, nil
}

func (p *Parser) parseIntLiteral() (int64, error) {
	tok := p.cur()
	if tok.Kind != token.Integer {
		return 0, syntaxErrorAt(tok, "integer literal")
	}
	p.r.Next()
	v, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		return 0, xerrors.At(xerrors.SyntaxError, tok.Line, tok.Column, "malformed integer literal")
	}
	return v, nil
}

func (p *Parser) parseProjectionList() ([]ast.Projection, error) {
	var out []ast.Projection
	for {
		proj, err := p.parseProjection()
		if err != nil {
			return nil, err
		}
		out = append(out, proj)
		if !p.matchKind(token.Comma) {
			break
		}
	}
	return out, nil
}

func (p *Parser) parseProjection() (ast.Projection, error) {
	if p.cur().Kind == token.Star {
		p.r.Next()
		return ast.Projection{Expr: ast.Star()}, nil
	}
	if p.cur().Kind == token.Name && p.peekAt(1).Kind == token.Dot && p.peekAt(2).Kind == token.Star {
		table := p.cur().Value
		p.r.Next()
		p.r.Next()
		p.r.Next()
		return ast.Projection{Expr: ast.QualifiedStar(table)}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return ast.Projection{}, err
	}
	alias := ""
	if p.matchKeyword("AS") {
		alias, err = p.expectName()
		if err != nil {
			return ast.Projection{}, err
		}
	} else if p.cur().Kind == token.Name {
		alias = p.cur().Value
		p.r.Next()
	}
	return ast.Projection{Expr: expr, Alias: alias}, nil
}

func (p *Parser) parseTableRef() (ast.TableRef, error) {
	if p.matchKind(token.LParen) {
		inner, err := p.parseSelect()
		if err != nil {
			return ast.TableRef{}, err
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return ast.TableRef{}, err
		}
		p.matchKeyword("AS")
		alias, err := p.expectName()
		if err != nil {
			return ast.TableRef{}, syntaxErrorAt(p.cur(), "derived table alias (required)")
		}
		return ast.TableRef{Derived: inner, Alias: alias}, nil
	}
	name, err := p.expectName()
	if err != nil {
		return ast.TableRef{}, err
	}
	alias := ""
	if p.matchKeyword("AS") {
		alias, err = p.expectName()
		if err != nil {
			return ast.TableRef{}, err
		}
	} else if p.cur().Kind == token.Name {
		alias = p.cur().Value
		p.r.Next()
	}
	return ast.TableRef{Name: name, Alias: alias}, nil
}

func (p *Parser) atJoinStart() bool {
	switch {
	case p.peekKeyword("JOIN"), p.peekKeyword("INNER"), p.peekKeyword("CROSS"):
		return true
	case p.peekKeyword("LEFT"), p.peekKeyword("RIGHT"):
		return true
	default:
		return false
	}
}

func (p *Parser) parseJoin() (ast.JoinOp, error) {
	var kind ast.JoinKind
	switch {
	case p.matchKeyword("INNER"):
		kind = ast.InnerJoin
		if _, err := p.expectKeyword("JOIN"); err != nil {
			return ast.JoinOp{}, err
		}
	case p.matchKeyword("LEFT"):
		kind = ast.LeftJoin
		p.matchKeyword("OUTER")
		if _, err := p.expectKeyword("JOIN"); err != nil {
			return ast.JoinOp{}, err
		}
	case p.matchKeyword("RIGHT"):
		kind = ast.RightJoin
		p.matchKeyword("OUTER")
		if _, err := p.expectKeyword("JOIN"); err != nil {
			return ast.JoinOp{}, err
		}
	case p.matchKeyword("CROSS"):
		kind = ast.CrossJoin
		if _, err := p.expectKeyword("JOIN"); err != nil {
			return ast.JoinOp{}, err
		}
	case p.matchKeyword("JOIN"):
		kind = ast.InnerJoin
	default:
		return ast.JoinOp{}, syntaxErrorAt(p.cur(), "JOIN")
	}
	target, err := p.parseTableRef()
	if err != nil {
		return ast.JoinOp{}, err
	}
	var on *ast.Expression
	switch {
	case p.matchKeyword("ON"):
		e, err := p.parseExpression()
		if err != nil {
			return ast.JoinOp{}, err
		}
		on = &e
	case p.matchKeyword("USING"):
		if _, err := p.expectKind(token.LParen, "("); err != nil {
			return ast.JoinOp{}, err
		}
		col, err := p.expectName()
		if err != nil {
			return ast.JoinOp{}, err
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return ast.JoinOp{}, err
		}
		targetQualifier := target.Alias
		if targetQualifier == "" {
			targetQualifier = target.Name
		}
		left := ast.Column(ast.Identifier{Name: col})
		right := ast.Column(ast.Identifier{Name: col, Qualifier: targetQualifier})
		e := ast.BinaryExpr(ast.Eq, left, right)
		on = &e
	}
	return ast.JoinOp{Kind: kind, Target: target, On: on}, nil
}

func (p *Parser) parseExprList() ([]ast.Expression, error) {
	var out []ast.Expression
	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.matchKind(token.Comma) {
			break
		}
	}
	return out, nil
}

func (p *Parser) parseOrderByList() ([]ast.OrderItem, error) {
	var out []ast.OrderItem
	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		asc := true
		switch {
		case p.matchKeyword("DESC"):
			asc = false
		case p.matchKeyword("ASC"):
		}
		out = append(out, ast.OrderItem{Expr: e, Asc: asc})
		if !p.matchKind(token.Comma) {
			break
		}
	}
	return out, nil
}
