package parser

import (
	"github.com/sqlmongo/translator/ast"
	"github.com/sqlmongo/translator/token"
)

func (p *Parser) parseInsert() (ast.Statement, error) {
	if _, err := p.expectKeyword("INSERT"); err != nil {
		return ast.Statement{}, err
	}
	if _, err := p.expectKeyword("INTO"); err != nil {
		return ast.Statement{}, err
	}
	table, err := p.expectName()
	if err != nil {
		return ast.Statement{}, err
	}
	var columns []string
	if p.matchKind(token.LParen) {
		for {
			c, err := p.expectName()
			if err != nil {
				return ast.Statement{}, err
			}
			columns = append(columns, c)
			if !p.matchKind(token.Comma) {
				break
			}
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return ast.Statement{}, err
		}
	}
	if _, err := p.expectKeyword("VALUES"); err != nil {
		return ast.Statement{}, err
	}
	var rows [][]ast.Expression
	for {
		if _, err := p.expectKind(token.LParen, "("); err != nil {
			return ast.Statement{}, err
		}
		row, err := p.parseExprList()
		if err != nil {
			return ast.Statement{}, err
		}
		if _, err := p.expectKind(token.RParen, ")"); err != nil {
			return ast.Statement{}, err
		}
		rows = append(rows, row)
		if !p.matchKind(token.Comma) {
			break
		}
	}
	return ast.InsertStmt(table, columns, rows), nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	if _, err := p.expectKeyword("UPDATE"); err != nil {
		return ast.Statement{}, err
	}
	table, err := p.expectName()
	if err != nil {
		return ast.Statement{}, err
	}
	if _, err := p.expectKeyword("SET"); err != nil {
		return ast.Statement{}, err
	}
	var assignments []ast.Assignment
	for {
		col, err := p.expectName()
		if err != nil {
			return ast.Statement{}, err
		}
		if _, err := p.expectKind(token.Eq, "="); err != nil {
			return ast.Statement{}, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return ast.Statement{}, err
		}
		assignments = append(assignments, ast.Assignment{Column: ast.Identifier{Name: col}, Expr: expr})
		if !p.matchKind(token.Comma) {
			break
		}
	}
	var where *ast.Expression
	if p.matchKeyword("WHERE") {
		e, err := p.parseExpression()
		if err != nil {
			return ast.Statement{}, err
		}
		where = &e
	}
	return ast.UpdateStmt(table, assignments, where), nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	if _, err := p.expectKeyword("DELETE"); err != nil {
		return ast.Statement{}, err
	}
	if _, err := p.expectKeyword("FROM"); err != nil {
		return ast.Statement{}, err
	}
	table, err := p.expectName()
	if err != nil {
		return ast.Statement{}, err
	}
	var where *ast.Expression
	if p.matchKeyword("WHERE") {
		e, err := p.parseExpression()
		if err != nil {
			return ast.Statement{}, err
		}
		where = &e
	}
	return ast.DeleteStmt(table, where), nil
}
