package catalog

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/xerrors"
)

// dateFormatSpecifiers is the exhaustive MariaDB/MySQL DATE_FORMAT specifier
// table, mapped to MongoDB's $dateToString specifiers. %r and %T expand to
// more than one $dateToString specifier and are handled as literal
// substitutions before the byte-by-byte pass below, matching the original
// implementation's _convert_date_format behaviour.
var dateFormatSpecifiers = map[byte]string{
	'Y': "%Y", 'y': "%y",
	'M': "%B", 'b': "%b",
	'm': "%m", 'c': "%m",
	'd': "%d", 'e': "%d", 'D': "%d",
	'j': "%j",
	'W': "%A", 'a': "%a", 'w': "%w",
	'H': "%H", 'h': "%I", 'I': "%I", 'k': "%H", 'l': "%I",
	'i': "%M",
	's': "%S", 'S': "%S",
	'f': "%L",
	'p': "%p",
	'U': "%U", 'u': "%U",
	'V': "%V", 'v': "%V",
	'X': "%G", 'x': "%G",
	'%': "%%",
}

var dateFormatComposites = map[string]string{
	"%r": "%h:%i:%S %p",
	"%T": "%H:%i:%S",
}

// convertDateFormat converts a MariaDB DATE_FORMAT/STR_TO_DATE format string
// to a MongoDB $dateToString/$dateFromString format string.
func convertDateFormat(mariaFmt string) (string, error) {
	// composite specifiers first, by descending length, to avoid a partial
	// match against one of their constituent single-letter specifiers.
	composites := make([]string, 0, len(dateFormatComposites))
	for k := range dateFormatComposites {
		composites = append(composites, k)
	}
	sort.Slice(composites, func(i, j int) bool { return len(composites[i]) > len(composites[j]) })
	for _, c := range composites {
		mariaFmt = strings.ReplaceAll(mariaFmt, c, dateFormatComposites[c])
	}

	var out strings.Builder
	for i := 0; i < len(mariaFmt); i++ {
		ch := mariaFmt[i]
		if ch != '%' {
			out.WriteByte(ch)
			continue
		}
		if i+1 >= len(mariaFmt) {
			return "", xerrors.New(xerrors.UnsupportedFormatSpecifier, "dangling '%' at end of format string")
		}
		spec, ok := dateFormatSpecifiers[mariaFmt[i+1]]
		if !ok {
			return "", xerrors.Newf(xerrors.UnsupportedFormatSpecifier, "unsupported DATE_FORMAT specifier %%%c", mariaFmt[i+1])
		}
		out.WriteString(spec)
		i++
	}
	return out.String(), nil
}

var unitToMongo = map[string]string{
	"YEAR": "year", "QUARTER": "quarter", "MONTH": "month", "WEEK": "week",
	"DAY": "day", "HOUR": "hour", "MINUTE": "minute", "SECOND": "second",
	"MICROSECOND": "millisecond",
}

func mongoUnit(unit string) string {
	if u, ok := unitToMongo[strings.ToUpper(unit)]; ok {
		return u
	}
	return "day" // original_source's fallback for an unrecognised unit
}

func registerDatetime(c *Catalog) {
	now := func(name string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
			return bson.M{"$$NOW": bson.M{}}, nil
		}})
	}
	now("NOW")
	now("CURRENT_TIMESTAMP")
	c.register(Entry{Name: "CURDATE", Kind: ScalarFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
		return op1("$dateTrunc", bson.M{"date": "$$NOW", "unit": "day"}), nil
	}})
	c.register(Entry{Name: "CURRENT_DATE", Kind: ScalarFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
		return op1("$dateTrunc", bson.M{"date": "$$NOW", "unit": "day"}), nil
	}})
	c.register(Entry{Name: "CURTIME", Kind: ScalarFunc, MinArgs: 0, MaxArgs: 0, Lower: func(args []any) (any, error) {
		return op1("$dateToString", bson.M{"date": "$$NOW", "format": "%H:%M:%S"}), nil
	}})

	comp := func(name, operator string) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
			return bson.M{operator: args[0]}, nil
		}})
	}
	comp("YEAR", "$year")
	comp("MONTH", "$month")
	comp("DAY", "$dayOfMonth")
	comp("HOUR", "$hour")
	comp("MINUTE", "$minute")
	comp("SECOND", "$second")
	comp("MICROSECOND", "$millisecond")
	comp("DAYOFWEEK", "$dayOfWeek")
	comp("DAYOFYEAR", "$dayOfYear")
	comp("WEEKDAY", "$isoDayOfWeek")
	comp("WEEK", "$week")
	comp("WEEKOFYEAR", "$isoWeek")

	c.register(Entry{Name: "QUARTER", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$ceil", op1("$divide", bson.A{op1("$month", args[0]), 3})), nil
	}})
	c.register(Entry{Name: "YEARWEEK", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return opN("$add", opN("$multiply", op1("$isoWeekYear", args[0]), 100), op1("$isoWeek", args[0])), nil
	}})
	c.register(Entry{Name: "DAYNAME", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$dateToString", bson.M{"date": args[0], "format": "%A"}), nil
	}})
	c.register(Entry{Name: "MONTHNAME", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		return op1("$dateToString", bson.M{"date": args[0], "format": "%B"}), nil
	}})
	c.register(Entry{Name: "LAST_DAY", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		startOfNextMonth := op1("$dateAdd", bson.M{
			"startDate": op1("$dateTrunc", bson.M{"date": args[0], "unit": "month"}),
			"unit":      "month", "amount": 1,
		})
		return op1("$dateSubtract", bson.M{"startDate": startOfNextMonth, "unit": "day", "amount": 1}), nil
	}})

	arith := func(name string, sign int) {
		c.register(Entry{Name: name, Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
			interval, ok := args[1].(bson.M)
			unit, amount := "day", any(1)
			if ok {
				if u, ok := interval["unit"]; ok {
					s, _ := u.(string)
					unit = mongoUnit(s)
				}
				if a, ok := interval["amount"]; ok {
					amount = a
				}
			}
			op := "$dateAdd"
			if sign < 0 {
				op = "$dateSubtract"
			}
			return op1(op, bson.M{"startDate": args[0], "unit": unit, "amount": amount}), nil
		}})
	}
	arith("DATE_ADD", 1)
	arith("ADDDATE", 1)
	arith("DATE_SUB", -1)
	arith("SUBDATE", -1)

	c.register(Entry{Name: "DATEDIFF", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$dateDiff", bson.M{"startDate": args[1], "endDate": args[0], "unit": "day"}), nil
	}})
	c.register(Entry{Name: "TIMESTAMPDIFF", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		unit, _ := args[0].(string)
		return op1("$dateDiff", bson.M{"startDate": args[1], "endDate": args[2], "unit": mongoUnit(unit)}), nil
	}})
	c.register(Entry{Name: "TIMESTAMPADD", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		unit, _ := args[0].(string)
		return op1("$dateAdd", bson.M{"startDate": args[2], "unit": mongoUnit(unit), "amount": args[1]}), nil
	}})

	c.register(Entry{Name: "MAKEDATE", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$dateFromParts", bson.M{"year": args[0], "dayOfYear": args[1]}), nil
	}})
	c.register(Entry{Name: "MAKETIME", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		return op1("$dateFromParts", bson.M{"year": 1970, "month": 1, "day": 1, "hour": args[0], "minute": args[1], "second": args[2]}), nil
	}})
	c.register(Entry{Name: "FROM_DAYS", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		epoch := op1("$dateFromParts", bson.M{"year": 0, "month": 1, "day": 1})
		return op1("$dateAdd", bson.M{"startDate": epoch, "unit": "day", "amount": args[0]}), nil
	}})
	c.register(Entry{Name: "TO_DAYS", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		epoch := op1("$dateFromParts", bson.M{"year": 0, "month": 1, "day": 1})
		return op1("$dateDiff", bson.M{"startDate": epoch, "endDate": args[0], "unit": "day"}), nil
	}})
	c.register(Entry{Name: "SEC_TO_TIME", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		midnight := op1("$dateTrunc", bson.M{"date": "$$NOW", "unit": "day"})
		added := op1("$dateAdd", bson.M{"startDate": midnight, "unit": "second", "amount": args[0]})
		return op1("$dateToString", bson.M{"date": added, "format": "%H:%M:%S"}), nil
	}})
	c.register(Entry{Name: "TIME_TO_SEC", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 1, Lower: func(args []any) (any, error) {
		h := op1("$hour", args[0])
		min := op1("$minute", args[0])
		s := op1("$second", args[0])
		return opN("$add", opN("$multiply", h, 3600), opN("$multiply", min, 60), s), nil
	}})
	c.register(Entry{Name: "UNIX_TIMESTAMP", Kind: ScalarFunc, MinArgs: 0, MaxArgs: 1, Lower: func(args []any) (any, error) {
		d := any(bson.M{"$$NOW": bson.M{}})
		if len(args) == 1 {
			d = args[0]
		}
		epoch := op1("$dateFromParts", bson.M{"year": 1970, "month": 1, "day": 1})
		return op1("$divide", bson.A{op1("$subtract", bson.A{d, epoch}), 1000}), nil
	}})
	c.register(Entry{Name: "FROM_UNIXTIME", Kind: ScalarFunc, MinArgs: 1, MaxArgs: 2, Lower: func(args []any) (any, error) {
		epoch := op1("$dateFromParts", bson.M{"year": 1970, "month": 1, "day": 1})
		asDate := op1("$dateAdd", bson.M{"startDate": epoch, "unit": "second", "amount": args[0]})
		if len(args) == 2 {
			fmtStr, _ := args[1].(string)
			conv, err := convertDateFormat(fmtStr)
			if err != nil {
				return nil, err
			}
			return op1("$dateToString", bson.M{"date": asDate, "format": conv}), nil
		}
		return asDate, nil
	}})

	c.register(Entry{Name: "DATE_FORMAT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		fmtStr, ok := args[1].(string)
		if !ok {
			return nil, xerrors.New(xerrors.UnsupportedArgument, "DATE_FORMAT requires a literal format string")
		}
		conv, err := convertDateFormat(fmtStr)
		if err != nil {
			return nil, err
		}
		return op1("$dateToString", bson.M{"date": args[0], "format": conv}), nil
	}})
	c.register(Entry{Name: "STR_TO_DATE", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		fmtStr, ok := args[1].(string)
		if !ok {
			return nil, xerrors.New(xerrors.UnsupportedArgument, "STR_TO_DATE requires a literal format string")
		}
		conv, err := convertDateFormat(fmtStr)
		if err != nil {
			return nil, err
		}
		return op1("$dateFromString", bson.M{"dateString": args[0], "format": conv}), nil
	}})
	c.register(Entry{Name: "CONVERT_TZ", Kind: ScalarFunc, MinArgs: 3, MaxArgs: 3, Lower: func(args []any) (any, error) {
		return op1("$dateToString", bson.M{"date": args[0], "timezone": args[2]}), nil
	}})

	c.register(Entry{Name: "EXTRACT", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		unit, _ := args[0].(string)
		switch strings.ToUpper(unit) {
		case "YEAR":
			return op1("$year", args[1]), nil
		case "QUARTER":
			return op1("$ceil", op1("$divide", bson.A{op1("$month", args[1]), 3})), nil
		case "MONTH":
			return op1("$month", args[1]), nil
		case "WEEK":
			return op1("$week", args[1]), nil
		case "DAY":
			return op1("$dayOfMonth", args[1]), nil
		case "HOUR":
			return op1("$hour", args[1]), nil
		case "MINUTE":
			return op1("$minute", args[1]), nil
		case "SECOND":
			return op1("$second", args[1]), nil
		case "MICROSECOND":
			return op1("$millisecond", args[1]), nil
		default:
			return nil, xerrors.Newf(xerrors.UnsupportedArgument, "EXTRACT does not support unit %s", unit)
		}
	}})

	c.register(Entry{Name: "PERIOD_ADD", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return opN("$add", args[0], args[1]), nil
	}})
	c.register(Entry{Name: "PERIOD_DIFF", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return opN("$subtract", args[0], args[1]), nil
	}})
	c.register(Entry{Name: "ADDTIME", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$dateAdd", bson.M{"startDate": args[0], "unit": "second", "amount": args[1]}), nil
	}})
	c.register(Entry{Name: "SUBTIME", Kind: ScalarFunc, MinArgs: 2, MaxArgs: 2, Lower: func(args []any) (any, error) {
		return op1("$dateSubtract", bson.M{"startDate": args[0], "unit": "second", "amount": args[1]}), nil
	}})
}

// ConvertDateFormat exposes the DATE_FORMAT/STR_TO_DATE format conversion
// outside the catalogue; nothing else in this module calls it.
func ConvertDateFormat(mariaFmt string) (string, error) { return convertDateFormat(mariaFmt) }
