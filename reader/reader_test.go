package reader

import (
	"testing"

	"github.com/sqlmongo/translator/token"
)

func toks(kinds ...token.Kind) []token.Token {
	out := make([]token.Token, len(kinds))
	for i, k := range kinds {
		out[i] = token.Token{Kind: k}
	}
	return out
}

func TestPeekAndNext(t *testing.T) {
	r := New(toks(token.Keyword, token.Name, token.EOF))
	if r.Peek(0).Kind != token.Keyword {
		t.Fatalf("Peek(0) = %v", r.Peek(0).Kind)
	}
	if r.Peek(1).Kind != token.Name {
		t.Fatalf("Peek(1) = %v", r.Peek(1).Kind)
	}
	if got := r.Next().Kind; got != token.Keyword {
		t.Fatalf("Next() = %v, want Keyword", got)
	}
	if got := r.Next().Kind; got != token.Name {
		t.Fatalf("Next() = %v, want Name", got)
	}
}

func TestPeekPastEndReturnsEOF(t *testing.T) {
	r := New(toks(token.Name))
	if got := r.Peek(5); got.Kind != token.EOF {
		t.Fatalf("Peek out of range = %v, want EOF", got.Kind)
	}
}

func TestNextAtEndIsIdempotent(t *testing.T) {
	r := New(toks(token.Name))
	r.Next()
	first := r.Next()
	second := r.Next()
	if first.Kind != token.EOF || second.Kind != token.EOF {
		t.Fatalf("Next() past end should keep returning EOF, got %v then %v", first.Kind, second.Kind)
	}
}

func TestAtEnd(t *testing.T) {
	r := New(toks(token.Name, token.EOF))
	if r.AtEnd() {
		t.Fatal("AtEnd() true before consuming any tokens")
	}
	r.Next()
	if !r.AtEnd() {
		t.Fatal("AtEnd() false once only EOF remains")
	}
}

func TestSliceIsBounded(t *testing.T) {
	r := New(toks(token.Keyword, token.Name, token.Comma, token.Name, token.EOF))
	sub := r.Slice(1, 3) // tokens[1:3] = Name, Comma
	if sub.Peek(0).Kind != token.Name {
		t.Fatalf("subreader start = %v, want Name", sub.Peek(0).Kind)
	}
	sub.Next()
	if sub.AtEnd() {
		t.Fatal("subreader ended before consuming its full range")
	}
	if sub.Peek(0).Kind != token.Comma {
		t.Fatalf("subreader second token = %v, want Comma", sub.Peek(0).Kind)
	}
	sub.Next()
	if !sub.AtEnd() {
		t.Fatalf("subreader should not see past its bound, got %v", sub.Peek(0).Kind)
	}
}

func TestExpectKeywordConsumesOnMatch(t *testing.T) {
	r := New([]token.Token{{Kind: token.Keyword, Value: "SELECT"}, {Kind: token.EOF}})
	tok, ok := r.ExpectKeyword("SELECT")
	if !ok || tok.Value != "SELECT" {
		t.Fatalf("ExpectKeyword did not match: %+v, %v", tok, ok)
	}
	if !r.AtEnd() {
		t.Fatal("ExpectKeyword should consume the matched token")
	}
}

func TestExpectKeywordDoesNotConsumeOnMismatch(t *testing.T) {
	r := New([]token.Token{{Kind: token.Keyword, Value: "SELECT"}, {Kind: token.EOF}})
	_, ok := r.ExpectKeyword("FROM")
	if ok {
		t.Fatal("ExpectKeyword should not match a different keyword")
	}
	if r.Peek(0).Value != "SELECT" {
		t.Fatal("ExpectKeyword must not consume on mismatch")
	}
}
