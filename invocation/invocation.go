// Package invocation defines the fully-lowered MongoDB driver call the
// translator produces, and the options that shape lowering.
package invocation

import (
	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Op is the MongoDB driver operation an Invocation dispatches to.
type Op string

const (
	OpFind         Op = "find"
	OpAggregate    Op = "aggregate"
	OpInsertOne    Op = "insertOne"
	OpInsertMany   Op = "insertMany"
	OpUpdateMany   Op = "updateMany"
	OpDeleteMany   Op = "deleteMany"
)

// Collation mirrors the MongoDB collation document the translator attaches
// to sort/compare-sensitive invocations to match MariaDB's
// utf8mb4_unicode_ci reference behaviour.
type Collation struct {
	Locale          string `bson:"locale"`
	CaseLevel       bool   `bson:"caseLevel"`
	Strength        int    `bson:"strength"`
	NumericOrdering bool   `bson:"numericOrdering"`
}

// DefaultCollation is the options.collation default specified for
// translate/translate_many.
func DefaultCollation() Collation {
	return Collation{Locale: "en", CaseLevel: false, Strength: 1, NumericOrdering: false}
}

// ReservedWordDialect selects the reserved-word set used for identifier
// recognition and escaping.
type ReservedWordDialect string

const (
	DialectMariaDB       ReservedWordDialect = "mariadb"
	DialectMariaDBOracle ReservedWordDialect = "mariadb_oracle"
)

// Options is the exhaustive set of knobs accepted by Translate/TranslateMany.
type Options struct {
	Collation             Collation
	ImplicitOrderOnLimit  bool
	ReservedWordDialect    ReservedWordDialect
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Collation:            DefaultCollation(),
		ImplicitOrderOnLimit: true,
		ReservedWordDialect:  DialectMariaDB,
	}
}

// Invocation is a fully-lowered MongoDB driver call.
type Invocation struct {
	// Database is not part of the invocation's own wire shape — Translate
	// copies its database argument here for the caller. internal/mongoexec
	// does not read it; it runs against the *mongo.Database it is given.
	Database string `bson:"-"`

	Collection string `bson:"collection"`
	Op         Op     `bson:"op"`

	// find
	Filter     bson.M `bson:"filter,omitempty"`
	Projection bson.M `bson:"projection,omitempty"`
	Sort       bson.M `bson:"sort,omitempty"`
	Skip       *int64 `bson:"skip,omitempty"`
	Limit      *int64 `bson:"limit,omitempty"`

	// aggregate
	Pipeline mongoPipeline `bson:"pipeline,omitempty"`

	// writes
	Document  bson.M   `bson:"document,omitempty"`
	Documents []bson.M `bson:"documents,omitempty"`
	Update    any      `bson:"update,omitempty"` // bson.M or mongoPipeline

	Collation *Collation `bson:"collation,omitempty"`
}

// mongoPipeline mirrors mongo.Pipeline's shape ([]bson.D) without importing
// the driver's mongo package from this low-level value type, keeping
// invocation import-cheap for callers that only need the wire shape.
type mongoPipeline = []bson.D

// NewAggregatePipeline is a convenience constructor used by the lowering
// engine to build a Pipeline value with the package's pipeline type.
func NewAggregatePipeline(stages ...bson.D) mongoPipeline {
	return mongoPipeline(stages)
}

// ToStructpb renders the Invocation as a protobuf Struct, for driver-glue
// layers that ship a translated invocation over a protobuf-based RPC
// instead of calling the MongoDB driver in-process.
func (inv Invocation) ToStructpb() (*structpb.Struct, error) {
	raw, err := bson.MarshalExtJSON(inv, false, false)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
