package catalog

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestLookupKnownFunctions(t *testing.T) {
	c := New()
	for _, name := range []string{"UPPER", "SUM", "COUNT", "DATE_FORMAT", "ROW_NUMBER", "JSON_EXTRACT", "REGEXP_REPLACE"} {
		if _, ok := c.Lookup(name); !ok {
			t.Errorf("catalog missing entry for %s", name)
		}
	}
}

func TestApplyUnknownFunction(t *testing.T) {
	c := New()
	_, err := c.Apply("NOT_A_REAL_FUNCTION", nil)
	if err == nil {
		t.Fatal("expected UnknownFunction error")
	}
}

func TestApplyArityMismatch(t *testing.T) {
	c := New()
	// UPPER takes exactly one argument.
	if _, err := c.Apply("UPPER", []any{"$a", "$b"}); err == nil {
		t.Fatal("expected ArityMismatch for too many arguments")
	}
	if _, err := c.Apply("UPPER", nil); err == nil {
		t.Fatal("expected ArityMismatch for too few arguments")
	}
}

func TestUpperLowersToToUpper(t *testing.T) {
	c := New()
	got, err := c.Apply("UPPER", []any{"$name"})
	if err != nil {
		t.Fatal(err)
	}
	want := bson.M{"$toUpper": "$name"}
	if m, ok := got.(bson.M); !ok || m["$toUpper"] != want["$toUpper"] {
		t.Fatalf("UPPER lowering = %#v, want %#v", got, want)
	}
}

func TestStddevPopRoundsToSixDecimals(t *testing.T) {
	c := New()
	got, err := c.Apply("STDDEV_POP", []any{"$score"})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(bson.M)
	if !ok {
		t.Fatalf("STDDEV_POP result is not a document: %#v", got)
	}
	roundArgs, ok := m["$round"].(bson.A)
	if !ok || len(roundArgs) != 2 || roundArgs[1] != 6 {
		t.Fatalf("STDDEV_POP must wrap in $round to 6 places, got %#v", m)
	}
}

func TestCountStarLowersToPlainSum(t *testing.T) {
	c := New()
	got, err := c.Apply("COUNT", []any{nil})
	if err != nil {
		t.Fatal(err)
	}
	want := bson.M{"$sum": 1}
	if m, ok := got.(bson.M); !ok || m["$sum"] != want["$sum"] {
		t.Fatalf("COUNT(*) lowering = %#v, want %#v", got, want)
	}
}

func TestDateFormatAcceptsSampleOfMappedSpecifiers(t *testing.T) {
	c := New()
	// A representative sample of MariaDB specifiers must all be accepted.
	for _, spec := range []string{"%Y-%m-%d", "%H:%i:%S", "%W, %M %e", "%p"} {
		if _, err := c.Apply("DATE_FORMAT", []any{"$createdAt", spec}); err != nil {
			t.Errorf("DATE_FORMAT(%q) unexpectedly failed: %v", spec, err)
		}
	}
}

func TestDateFormatUnknownSpecifierIsUnsupported(t *testing.T) {
	c := New()
	if _, err := c.Apply("DATE_FORMAT", []any{"$createdAt", "%Q"}); err == nil {
		t.Fatal("expected UnsupportedFormatSpecifier for %Q")
	}
}

func TestLpadUsesTargetLengthAndPadString(t *testing.T) {
	c := New()
	got, err := c.Apply("LPAD", []any{"$code", int64(5), "0"})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(bson.M)
	if !ok {
		t.Fatalf("LPAD result is not a document: %#v", got)
	}
	let, ok := m["$let"].(bson.M)
	if !ok {
		t.Fatalf("LPAD must lower to a $let, got %#v", m)
	}
	vars, ok := let["vars"].(bson.M)
	if !ok {
		t.Fatalf("LPAD $let missing vars: %#v", let)
	}
	if vars["s"] != "$code" || vars["tlen"] != int64(5) || vars["pad"] != "0" {
		t.Fatalf("LPAD must reference str, target length, and pad string, got vars %#v", vars)
	}
}

func TestRpadTruncatesWhenStringAlreadyLongEnough(t *testing.T) {
	c := New()
	got, err := c.Apply("RPAD", []any{"$name", int64(3), "x"})
	if err != nil {
		t.Fatal(err)
	}
	m := got.(bson.M)
	let := m["$let"].(bson.M)
	in, ok := let["in"].(bson.M)
	if !ok {
		t.Fatalf("RPAD $let missing in: %#v", let)
	}
	cond, ok := in["$cond"].(bson.M)
	if !ok || cond["if"] == nil || cond["then"] == nil {
		t.Fatalf("RPAD must branch on strLen >= targetLen to truncate, got %#v", in)
	}
}

func TestHexEncodesIntegerNotDecimalString(t *testing.T) {
	c := New()
	got, err := c.Apply("HEX", []any{int64(255)})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(bson.M)
	if !ok {
		t.Fatalf("HEX result is not a document: %#v", got)
	}
	if _, ok := m["$toString"]; ok {
		t.Fatalf("HEX must not lower to a plain $toString decimal string, got %#v", m)
	}
	if _, ok := m["$let"]; !ok {
		t.Fatalf("HEX must build a hex digit string via $let/$reduce, got %#v", m)
	}
}

func TestUnhexIsInverseOfHex(t *testing.T) {
	c := New()
	got, err := c.Apply("UNHEX", []any{"FF"})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(bson.M)
	if !ok {
		t.Fatalf("UNHEX result is not a document: %#v", got)
	}
	reduce, ok := m["$reduce"].(bson.M)
	if !ok {
		t.Fatalf("UNHEX must lower to a $reduce over hex digits, got %#v", m)
	}
	if reduce["initialValue"] != int64(0) {
		t.Fatalf("UNHEX must start accumulating from 0, got %#v", reduce["initialValue"])
	}
}

func TestSoundexIsRegisteredAndPadsToFourCharacters(t *testing.T) {
	c := New()
	got, err := c.Apply("SOUNDEX", []any{"$lastName"})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(bson.M)
	if !ok {
		t.Fatalf("SOUNDEX result is not a document: %#v", got)
	}
	substr, ok := m["$substrCP"].(bson.A)
	if !ok || len(substr) != 3 || substr[1] != 0 || substr[2] != 4 {
		t.Fatalf("SOUNDEX must truncate/pad its code to exactly 4 characters, got %#v", m)
	}
}

func TestRegexpReplaceUsesRegexFindAllNotLiteralReplace(t *testing.T) {
	c := New()
	got, err := c.Apply("REGEXP_REPLACE", []any{"$email", "^[0-9]+", "N"})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.(bson.M)
	if !ok {
		t.Fatalf("REGEXP_REPLACE result is not a document: %#v", got)
	}
	let, ok := m["$let"].(bson.M)
	if !ok {
		t.Fatalf("REGEXP_REPLACE must lower to a $let splicing matches, got %#v", m)
	}
	vars, ok := let["vars"].(bson.M)
	if !ok {
		t.Fatalf("REGEXP_REPLACE $let missing vars: %#v", let)
	}
	reduceDoc, ok := vars["r"].(bson.M)
	if !ok {
		t.Fatalf("REGEXP_REPLACE must reduce over regex matches: %#v", vars)
	}
	reduce, ok := reduceDoc["$reduce"].(bson.M)
	if !ok {
		t.Fatalf("REGEXP_REPLACE must reduce over regex matches: %#v", reduceDoc)
	}
	findAll, ok := reduce["input"].(bson.M)
	if !ok || findAll["$regexFindAll"] == nil {
		t.Fatalf("REGEXP_REPLACE must drive replacement from $regexFindAll, got %#v", reduce["input"])
	}
}
