package lexer

import "fmt"

// Error reports a lexical failure. The lexer itself never returns an error
// from Tokenize: a malformed span becomes a single token.Error token instead
// (the lexer is total), and it is the parser's job to turn that token into a
// reported SyntaxError. The scan* helpers build those Error tokens directly;
// nothing in this package constructs an Error value.
type Error struct {
	Message string
	Line    int
	Column  int
	Offset  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Line, e.Column)
}
