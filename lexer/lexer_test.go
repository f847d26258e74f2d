package lexer

import (
	"testing"

	"github.com/sqlmongo/translator/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeKeywordsAndNames(t *testing.T) {
	toks := Tokenize("SELECT a FROM b")
	want := []token.Kind{token.Keyword, token.Name, token.Keyword, token.Name, token.EOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v want %v", i, got[i], want[i])
		}
	}
	if toks[0].Value != "SELECT" {
		t.Errorf("keyword value = %q, want SELECT", toks[0].Value)
	}
}

func TestTokenizeCaseInsensitiveKeyword(t *testing.T) {
	toks := Tokenize("select 1")
	if toks[0].Kind != token.Keyword || toks[0].Value != "SELECT" {
		t.Fatalf("lowercase keyword not recognised: %+v", toks[0])
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks := Tokenize(`'it''s' "he said ""hi"""`)
	if toks[0].Kind != token.String || toks[0].Value != "it's" {
		t.Errorf("single-quote escape: got %+v", toks[0])
	}
	if toks[1].Kind != token.String || toks[1].Value != `he said "hi"` {
		t.Errorf("double-quote escape: got %+v", toks[1])
	}
}

func TestTokenizeBacktickIdentifier(t *testing.T) {
	toks := Tokenize("`select` `order`")
	if toks[0].Kind != token.Name || toks[0].Value != "select" {
		t.Errorf("backtick identifier: got %+v", toks[0])
	}
	if toks[1].Kind != token.Name || toks[1].Value != "order" {
		t.Errorf("backtick reserved word: got %+v", toks[1])
	}
}

func TestTokenizeNumericLiterals(t *testing.T) {
	toks := Tokenize("1 2.5 1.5e10")
	if toks[0].Kind != token.Integer || toks[0].Value != "1" {
		t.Errorf("integer: got %+v", toks[0])
	}
	if toks[1].Kind != token.Float || toks[1].Value != "2.5" {
		t.Errorf("float: got %+v", toks[1])
	}
	if toks[2].Kind != token.Float || toks[2].Value != "1.5e10" {
		t.Errorf("exponential float: got %+v", toks[2])
	}
}

func TestTokenizeMultiCharOperators(t *testing.T) {
	toks := Tokenize("<= >= <> != || :=")
	want := []token.Kind{token.Lte, token.Gte, token.Neq, token.Neq, token.Concat, token.Assign}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("operator %d: got %v want %v (%q)", i, toks[i].Kind, k, toks[i].Value)
		}
	}
}

func TestTokenizeComments(t *testing.T) {
	toks := Tokenize("SELECT 1 -- trailing comment\n/* block\ncomment */ FROM t")
	got := kinds(toks)
	want := []token.Kind{token.Keyword, token.Integer, token.Keyword, token.Name, token.EOF}
	if len(got) != len(want) {
		t.Fatalf("comments not discarded, got %v", got)
	}
}

func TestTokenizeIsTotal(t *testing.T) {
	// Even malformed input must produce a token sequence, never a panic,
	// with an Error token in place of the offending span.
	toks := Tokenize("SELECT # 1")
	foundError := false
	for _, tk := range toks {
		if tk.Kind == token.Error {
			foundError = true
		}
	}
	if !foundError {
		t.Errorf("expected an Error token for unrecognised input, got %v", kinds(toks))
	}
	if toks[len(toks)-1].Kind != token.EOF {
		t.Errorf("token stream must end in EOF, got %v", toks[len(toks)-1])
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	toks := Tokenize("")
	if len(toks) != 1 || toks[0].Kind != token.EOF {
		t.Fatalf("empty input should yield a single EOF token, got %v", toks)
	}
}
