// Package reader provides the positional token cursor that is the sole
// interface by which the parser and clause sub-parsers consume tokens. No
// layer above the lexer inspects the source string directly.
package reader

import "github.com/sqlmongo/translator/token"

// Reader is a positional cursor with lookahead over a token slice. Slicing
// a Reader into a subreader shares the underlying token slice; a subreader
// cannot see past its own bound.
type Reader struct {
	tokens []token.Token
	pos    int
}

// New wraps tokens (as produced by lexer.Tokenize) in a Reader starting at
// position 0.
func New(tokens []token.Token) *Reader {
	return &Reader{tokens: tokens}
}

// Peek returns the token k positions ahead of the cursor without consuming
// it. Peek(0) is the same as the token Next() would return.
func (r *Reader) Peek(k int) token.Token {
	i := r.pos + k
	if i < 0 || i >= len(r.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return r.tokens[i]
}

// Next consumes and returns the current token, advancing the cursor.
func (r *Reader) Next() token.Token {
	tok := r.Peek(0)
	if r.pos < len(r.tokens) {
		r.pos++
	}
	return tok
}

// AtEnd reports whether the cursor has reached EOF.
func (r *Reader) AtEnd() bool { return r.Peek(0).Kind == token.EOF }

// Position returns the cursor's current index into the token slice, usable
// with Slice to carve out a clause's token range.
func (r *Reader) Position() int { return r.pos }

// SetPosition rewinds or fast-forwards the cursor to an earlier Position()
// value, used by lookahead that needs to backtrack.
func (r *Reader) SetPosition(p int) { r.pos = p }

// ExpectKeyword consumes the current token if it is the reserved word kw
// (already upper-cased by the lexer), returning ok=false and leaving the
// cursor unmoved otherwise.
func (r *Reader) ExpectKeyword(kw string) (token.Token, bool) {
	if r.Peek(0).IsKeyword(kw) {
		return r.Next(), true
	}
	return token.Token{}, false
}

// ExpectKind consumes the current token if it has kind k.
func (r *Reader) ExpectKind(k token.Kind) (token.Token, bool) {
	if r.Peek(0).Kind == k {
		return r.Next(), true
	}
	return token.Token{}, false
}

// ConsumeIf consumes the current token and returns true if pred matches it.
func (r *Reader) ConsumeIf(pred func(token.Token) bool) bool {
	if pred(r.Peek(0)) {
		r.Next()
		return true
	}
	return false
}

// Slice returns a new Reader restricted to tokens [a,b) of the same
// underlying slice, used to hand a clause sub-parser exactly its own token
// range.
func (r *Reader) Slice(a, b int) *Reader {
	if b > len(r.tokens) {
		b = len(r.tokens)
	}
	if a > b {
		a = b
	}
	return &Reader{tokens: r.tokens[:b], pos: a}
}

// Tokens exposes the underlying slice for diagnostics (e.g. building a
// SyntaxError's "found" text).
func (r *Reader) Tokens() []token.Token { return r.tokens }
