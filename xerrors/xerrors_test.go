package xerrors

import "testing"

func TestErrorWithoutPositionOmitsLineColumn(t *testing.T) {
	err := New(UnknownFunction, "unknown function FOO")
	got := err.Error()
	want := "UnknownFunction: unknown function FOO"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorWithPositionIncludesLineColumn(t *testing.T) {
	err := At(SyntaxError, 3, 12, "unexpected token")
	got := err.Error()
	want := "SyntaxError: unexpected token (line 3, column 12)"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(ArityMismatch, "%s expects %d argument(s), got %d", "UPPER", 1, 2)
	want := "UPPER expects 1 argument(s), got 2"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestWithHintDoesNotMutateOriginal(t *testing.T) {
	base := New(UnsupportedConstruct, "RIGHT JOIN is not supported")
	hinted := base.WithHint("swap the join order and use LEFT JOIN instead")
	if base.Hint != "" {
		t.Errorf("WithHint mutated the receiver: base.Hint = %q", base.Hint)
	}
	if hinted.Hint == "" {
		t.Error("expected the returned copy to carry the hint")
	}
	if hinted.Kind != base.Kind || hinted.Message != base.Message {
		t.Errorf("WithHint changed Kind/Message: %+v vs %+v", hinted, base)
	}
}

func TestErrorSatisfiesErrorInterface(t *testing.T) {
	var err error = New(SyntaxError, "boom")
	if err.Error() == "" {
		t.Fatal("Error() returned empty string")
	}
}
