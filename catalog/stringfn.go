package catalog

import (
	"go.mongodb.org/mongo-driver/bson"
)

func registerString(c *Catalog) {
	c.register(Entry{Name: "CONCAT", Kind: ScalarFunc, MinArgs: 1, MaxArgs: -1, Lower: func(args []any) (any, error) {
		return opN("$concat", args...), nil
	}})
	c.register(Entry{Name: "CONCAT_WS", Kind: ScalarFunc, MinArgs: 2, MaxArgs: -1, Lower: func(args []any) (any, error) {
		sep, parts := args[0], args[1:]
		joined := bson.A{}
		for i, p := range parts {
			if i > 0 {
				joined = append(joined, sep)
			}
			joined = append(joined, p)
		}
		return bson.M{"$concat": joined}, nil
	}})
	length := func(name string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
			return op1("$strLenCP", args[0]), nil
		}})
	}
	length("LENGTH")
	length("CHAR_LENGTH")
	c.register(Entry{Name: "UPPER", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$toUpper", args[0]), nil
	}})
	c.register(Entry{Name: "LOWER", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$toLower", args[0]), nil
	}})
	c.register(Entry{Name: "LEFT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$substrCP", bson.A{args[0], 0, args[1]}), nil
	}})
	c.register(Entry{Name: "RIGHT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		length := op1("$strLenCP", args[0])
		start := opN("$subtract", length, args[1])
		return op1("$substrCP", bson.A{args[0], start, args[1]}), nil
	}})
	substr := func(name string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 2, MaxArgs: 3, Lower: func(args []any) (any, error) {
			start := opN("$subtract", args[1], 1)
			length := arg(args, 2, op1("$strLenCP", args[0]))
			return op1("$substrCP", bson.A{args[0], start, length}), nil
		}})
	}
	substr("SUBSTRING")
	substr("MID")
	c.register(Entry{Name: "TRIM", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$trim", bson.M{"input": args[0]}), nil
	}})
	c.register(Entry{Name: "LTRIM", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$ltrim", bson.M{"input": args[0]}), nil
	}})
	c.register(Entry{Name: "RTRIM", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$rtrim", bson.M{"input": args[0]}), nil
	}})
	c.register(Entry{Name: "REPLACE", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		return op1("$replaceAll", bson.M{"input": args[0], "find": args[1], "replacement": args[2]}), nil
	}})
	c.register(Entry{Name: "REVERSE", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$reverseArray", op1("$split", bson.A{args[0], ""})), nil
	}})
	c.register(Entry{Name: "LPAD", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		return padExpr(args[0], args[1], args[2], true), nil
	}})
	c.register(Entry{Name: "RPAD", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		return padExpr(args[0], args[1], args[2], false), nil
	}})
	instr := func(name string, swap bool) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
			haystack, needle := args[0], args[1]
			if swap {
				haystack, needle = args[1], args[0]
			}
			idx := opN("$indexOfCP", haystack, needle)
			return opN("$add", idx, 1), nil
		}})
	}
	instr("INSTR", false)
	instr("LOCATE", true)
	instr("POSITION", true)
	c.register(Entry{Name: "REPEAT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$reduce", bson.M{
			"input":        op1("$range", bson.A{0, args[1]}),
			"initialValue": "",
			"in":           op1("$concat", bson.A{"$$value", args[0]}),
		}), nil
	}})
	c.register(Entry{Name: "FORMAT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$toString", op1("$round", bson.A{args[0], args[1]})), nil
	}})
	c.register(Entry{Name: "HEX", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return hexExpr(args[0]), nil
	}})
	c.register(Entry{Name: "UNHEX", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return unhexExpr(args[0]), nil
	}})
	c.register(Entry{Name: "SOUNDEX", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return soundexExpr(args[0]), nil
	}})
	c.register(Entry{Name: "ASCII", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		first := op1("$substrCP", bson.A{args[0], 0, 1})
		return op1("$toInt", first), nil
	}})
}

// hexDigits is the lookup table shared by HEX's encoder and UNHEX's digit
// decoder: MongoDB's aggregation framework has no native base
// conversion, so both directions are built from $arrayElemAt/$indexOfArray
// against this table instead.
var hexDigits = bson.A{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "A", "B", "C", "D", "E", "F"}

// padExpr implements MariaDB LPAD/RPAD: truncate str to length if it is
// already that long or longer, otherwise pad it with padStr repeated (and
// cycled) up to length. $shift/$function are unavailable, so the repeated
// pad is built with $reduce over a $range sized to cover the shortfall, then
// trimmed to the exact number of characters needed with $substrCP.
func padExpr(str, length, padStr any, left bool) any {
	needed := opN("$subtract", "$$tlen", "$$slen")
	repeatCount := op1("$ceil", opN("$divide", needed, "$$plen"))
	repeated := op1("$reduce", bson.M{
		"input":        op1("$range", bson.A{0, repeatCount}),
		"initialValue": "",
		"in":           op1("$concat", bson.A{"$$value", "$$pad"}),
	})
	padSlice := op1("$substrCP", bson.A{repeated, 0, needed})
	var padded bson.M
	if left {
		padded = op1("$concat", bson.A{padSlice, "$$s"})
	} else {
		padded = op1("$concat", bson.A{"$$s", padSlice})
	}
	return bson.M{
		"$let": bson.M{
			"vars": bson.M{
				"s":    str,
				"slen": op1("$strLenCP", str),
				"tlen": length,
				"pad":  padStr,
				"plen": op1("$strLenCP", padStr),
			},
			"in": bson.M{
				"$cond": bson.M{
					"if":   opN("$gte", "$$slen", "$$tlen"),
					"then": op1("$substrCP", bson.A{"$$s", 0, "$$tlen"}),
					"else": bson.M{
						"$cond": bson.M{
							// an empty pad string can't fill a shortfall; MariaDB
							// returns NULL in this case.
							"if":   opN("$eq", "$$plen", 0),
							"then": nil,
							"else": padded,
						},
					},
				},
			},
		},
	}
}

// hexExpr converts a non-negative integer to its hex digit string by
// repeatedly extracting the low nibble over a fixed 16-round $reduce (enough
// for a 64-bit value), then trimming the leading zeros that loop leaves
// behind. MariaDB's HEX also hex-encodes string arguments byte-by-byte, but
// the aggregation framework has no codepoint-to-byte operator to do that
// without $function, so this covers the numeric form.
func hexExpr(v any) any {
	loop := op1("$reduce", bson.M{
		"input":        op1("$range", bson.A{0, 16}),
		"initialValue": bson.M{"rem": op1("$toLong", v), "hex": ""},
		"in": bson.M{
			"rem": op1("$floor", opN("$divide", "$$value.rem", 16)),
			"hex": op1("$concat", bson.A{
				op1("$arrayElemAt", bson.A{hexDigits, opN("$mod", "$$value.rem", 16)}),
				"$$value.hex",
			}),
		},
	})
	return bson.M{
		"$let": bson.M{
			"vars": bson.M{"trimmed": bson.M{"$ltrim": bson.M{"input": loopField(loop, "hex"), "chars": "0"}}},
			"in": bson.M{
				"$cond": bson.M{
					"if":   opN("$eq", "$$trimmed", ""),
					"then": "0",
					"else": "$$trimmed",
				},
			},
		},
	}
}

// unhexExpr is the inverse of hexExpr: it parses a hex digit string back
// into the integer it encodes, rather than MariaDB's byte-decoding UNHEX
// (which needs the same codepoint access hexExpr lacks for strings).
func unhexExpr(v any) any {
	chars := op1("$split", bson.A{op1("$toUpper", v), ""})
	digit := opN("$indexOfArray", hexDigits, "$$this")
	return op1("$reduce", bson.M{
		"input":        chars,
		"initialValue": int64(0),
		"in":           opN("$add", opN("$multiply", "$$value", 16), digit),
	})
}

// loopField reads a field off a $reduce/$let result document via $let,
// since dot-path access only works on field references, not on the
// expression's own result.
func loopField(doc any, field string) bson.M {
	return bson.M{"$let": bson.M{
		"vars": bson.M{"r": doc},
		"in":   "$$r." + field,
	}}
}

// soundexCode maps a single uppercase letter to its Soundex digit.
func soundexCode(ch any) bson.M {
	return bson.M{"$switch": bson.M{
		"branches": bson.A{
			bson.M{"case": opN("$in", ch, bson.A{"B", "F", "P", "V"}), "then": "1"},
			bson.M{"case": opN("$in", ch, bson.A{"C", "G", "J", "K", "Q", "S", "X", "Z"}), "then": "2"},
			bson.M{"case": opN("$in", ch, bson.A{"D", "T"}), "then": "3"},
			bson.M{"case": opN("$in", ch, bson.A{"L"}), "then": "4"},
			bson.M{"case": opN("$in", ch, bson.A{"M", "N"}), "then": "5"},
			bson.M{"case": opN("$in", ch, bson.A{"R"}), "then": "6"},
		},
		"default": "0",
	}}
}

// soundexExpr implements Soundex: keep the first letter, code the rest,
// collapse adjacent letters that code the same digit, drop vowels (code
// "0"), then pad/truncate to 4 characters. This is the common simplified
// form; it does not special-case h/w as non-breaking separators the way
// the full algorithm does, since that needs per-character lookback the
// aggregation framework has no indexed access to provide cheaply.
func soundexExpr(str any) any {
	upper := op1("$toUpper", str)
	strLen := op1("$strLenCP", upper)
	first := op1("$substrCP", bson.A{upper, 0, 1})
	rest := op1("$split", bson.A{op1("$substrCP", bson.A{upper, 1, opN("$subtract", strLen, 1)}), ""})
	reduced := op1("$reduce", bson.M{
		"input":        rest,
		"initialValue": bson.M{"lastCode": soundexCode(first), "out": ""},
		"in": bson.M{
			"$let": bson.M{
				"vars": bson.M{"code": soundexCode("$$this")},
				"in": bson.M{
					"$cond": bson.M{
						"if":   opN("$eq", "$$code", "0"),
						"then": bson.M{"lastCode": "0", "out": "$$value.out"},
						"else": bson.M{
							"$cond": bson.M{
								"if":   opN("$eq", "$$code", "$$value.lastCode"),
								"then": "$$value",
								"else": bson.M{"lastCode": "$$code", "out": op1("$concat", bson.A{"$$value.out", "$$code"})},
							},
						},
					},
				},
			},
		},
	})
	padded := bson.M{"$let": bson.M{
		"vars": bson.M{"r": reduced},
		"in":   op1("$concat", bson.A{first, "$$r.out", "000"}),
	}}
	return op1("$substrCP", bson.A{padded, 0, 4})
}
