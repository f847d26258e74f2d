// Package catalog is the function-mapping catalogue: a registry from SQL
// function name (case-insensitive) to a pure lowering recipe that turns
// already-lowered MongoDB expression arguments into a MongoDB expression
// document. The catalogue is built once, by New, and is never mutated
// afterwards; the lowering engine holds it by reference.
package catalog

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/xerrors"
)

// FuncKind classifies a catalogue entry the way the lowering engine needs
// to treat it: aggregates belong in a $group accumulator, window functions
// require an OVER clause and a $setWindowFields stage, scalars lower inline
// wherever they appear.
type FuncKind int

const (
	ScalarFunc FuncKind = iota
	AggregateFunc
	WindowFunc
)

// LowerFunc produces a MongoDB expression document from already-lowered
// argument expressions. It must be pure: no I/O, no reliance on anything
// but its arguments.
type LowerFunc func(args []any) (any, error)

// Entry is one catalogue registration.
type Entry struct {
	Name    string
	Kind    FuncKind
	MinArgs int
	MaxArgs int // -1 means unbounded
	Lower   LowerFunc
}

// Catalog is the immutable, value-typed function registry.
type Catalog struct {
	entries map[string]Entry
}

// New constructs the full catalogue, grouped by family.
func New() *Catalog {
	c := &Catalog{entries: make(map[string]Entry, 128)}
	registerDatetime(c)
	registerString(c)
	registerMath(c)
	registerAggregate(c)
	registerJSON(c)
	registerRegex(c)
	registerWindow(c)
	return c
}

func (c *Catalog) register(e Entry) {
	c.entries[e.Name] = e
}

// Lookup finds the catalogue entry for name (already upper-cased by the
// caller, per the IR's invariant that FunctionCall.Name is upper-cased).
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Apply looks up name, validates arity, and invokes its lowering recipe.
func (c *Catalog) Apply(name string, args []any) (any, error) {
	e, ok := c.Lookup(name)
	if !ok {
		return nil, xerrors.Newf(xerrors.UnknownFunction, "unknown function %s", name)
	}
	if len(args) < e.MinArgs || (e.MaxArgs >= 0 && len(args) > e.MaxArgs) {
		return nil, xerrors.Newf(xerrors.ArityMismatch, "%s expects between %d and %d arguments, got %d", name, e.MinArgs, e.MaxArgs, len(args))
	}
	return e.Lower(args)
}

// helpers shared by family files

func m(pairs ...any) bson.M {
	out := bson.M{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i].(string)] = pairs[i+1]
	}
	return out
}

func op1(name string, a any) bson.M { return bson.M{name: a} }
func opN(name string, args ...any) bson.M {
	arr := bson.A{}
	for _, a := range args {
		arr = append(arr, a)
	}
	return bson.M{name: arr}
}

func arg(args []any, i int, def any) any {
	if i < len(args) {
		return args[i]
	}
	return def
}
