package parser

import (
	"fmt"

	"github.com/sqlmongo/translator/token"
	"github.com/sqlmongo/translator/xerrors"
)

func syntaxErrorAt(tok token.Token, expected string) *xerrors.Error {
	found := tok.Value
	if tok.Kind == token.EOF {
		return xerrors.At(xerrors.UnexpectedEnd, tok.Line, tok.Column,
			fmt.Sprintf("expected %s, reached end of input", expected))
	}
	if found == "" {
		found = fmt.Sprintf("%v", tok.Kind)
	}
	return xerrors.At(xerrors.SyntaxError, tok.Line, tok.Column,
		fmt.Sprintf("expected %s, found %q", expected, found))
}

func unclosedAt(tok token.Token, kind string) *xerrors.Error {
	return xerrors.At(xerrors.UnclosedConstruct, tok.Line, tok.Column,
		fmt.Sprintf("unclosed %s", kind))
}

func unsupportedAt(tok token.Token, what string) *xerrors.Error {
	return xerrors.At(xerrors.UnsupportedConstruct, tok.Line, tok.Column, what)
}
