// Package mongoexec dispatches a lowered invocation.Invocation against a
// real MongoDB database handle. It is the thin glue layer between the
// translator's pure lowering output and the go.mongodb.org/mongo-driver
// client — no SQL or translation logic lives here.
package mongoexec

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sqlmongo/translator/invocation"
)

// Run executes inv against db and returns its result rows as plain maps,
// the same shape regardless of whether inv was a find, an aggregate, or a
// write.
func Run(ctx context.Context, db *mongo.Database, inv *invocation.Invocation) ([]map[string]any, error) {
	coll := db.Collection(inv.Collection)
	switch inv.Op {
	case invocation.OpFind:
		return runFind(ctx, coll, inv)
	case invocation.OpAggregate:
		return runAggregate(ctx, coll, inv)
	case invocation.OpInsertOne:
		return runInsertOne(ctx, coll, inv)
	case invocation.OpInsertMany:
		return runInsertMany(ctx, coll, inv)
	case invocation.OpUpdateMany:
		return runUpdateMany(ctx, coll, inv)
	case invocation.OpDeleteMany:
		return runDeleteMany(ctx, coll, inv)
	default:
		return nil, fmt.Errorf("mongoexec: unsupported operation %q", inv.Op)
	}
}

func findCollationOpts(inv *invocation.Invocation) *options.FindOptions {
	opts := options.Find()
	if len(inv.Projection) > 0 {
		opts.SetProjection(inv.Projection)
	}
	if len(inv.Sort) > 0 {
		opts.SetSort(inv.Sort)
	}
	if inv.Skip != nil {
		opts.SetSkip(*inv.Skip)
	}
	if inv.Limit != nil {
		opts.SetLimit(*inv.Limit)
	}
	if inv.Collation != nil {
		opts.SetCollation(&options.Collation{
			Locale:          inv.Collation.Locale,
			CaseLevel:       inv.Collation.CaseLevel,
			Strength:        inv.Collation.Strength,
			NumericOrdering: inv.Collation.NumericOrdering,
		})
	}
	return opts
}

func runFind(ctx context.Context, coll *mongo.Collection, inv *invocation.Invocation) ([]map[string]any, error) {
	filter := inv.Filter
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := coll.Find(ctx, filter, findCollationOpts(inv))
	if err != nil {
		return nil, fmt.Errorf("mongoexec: find: %w", err)
	}
	defer cursor.Close(ctx)
	return drainCursor(ctx, cursor)
}

func runAggregate(ctx context.Context, coll *mongo.Collection, inv *invocation.Invocation) ([]map[string]any, error) {
	opts := options.Aggregate()
	if inv.Collation != nil {
		opts.SetCollation(&options.Collation{
			Locale:          inv.Collation.Locale,
			CaseLevel:       inv.Collation.CaseLevel,
			Strength:        inv.Collation.Strength,
			NumericOrdering: inv.Collation.NumericOrdering,
		})
	}
	cursor, err := coll.Aggregate(ctx, mongo.Pipeline(inv.Pipeline), opts)
	if err != nil {
		return nil, fmt.Errorf("mongoexec: aggregate: %w", err)
	}
	defer cursor.Close(ctx)
	return drainCursor(ctx, cursor)
}

func runInsertOne(ctx context.Context, coll *mongo.Collection, inv *invocation.Invocation) ([]map[string]any, error) {
	result, err := coll.InsertOne(ctx, inv.Document)
	if err != nil {
		return nil, fmt.Errorf("mongoexec: insertOne: %w", err)
	}
	return []map[string]any{{"inserted_id": result.InsertedID, "rows_affected": int64(1)}}, nil
}

func runInsertMany(ctx context.Context, coll *mongo.Collection, inv *invocation.Invocation) ([]map[string]any, error) {
	docs := make([]any, len(inv.Documents))
	for i, d := range inv.Documents {
		docs[i] = d
	}
	result, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("mongoexec: insertMany: %w", err)
	}
	return []map[string]any{{"inserted_ids": result.InsertedIDs, "rows_affected": int64(len(result.InsertedIDs))}}, nil
}

func runUpdateMany(ctx context.Context, coll *mongo.Collection, inv *invocation.Invocation) ([]map[string]any, error) {
	filter := inv.Filter
	if filter == nil {
		filter = bson.M{}
	}
	result, err := coll.UpdateMany(ctx, filter, inv.Update)
	if err != nil {
		return nil, fmt.Errorf("mongoexec: updateMany: %w", err)
	}
	return []map[string]any{{"rows_affected": result.ModifiedCount, "matched": result.MatchedCount}}, nil
}

func runDeleteMany(ctx context.Context, coll *mongo.Collection, inv *invocation.Invocation) ([]map[string]any, error) {
	filter := inv.Filter
	if filter == nil {
		filter = bson.M{}
	}
	result, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongoexec: deleteMany: %w", err)
	}
	return []map[string]any{{"rows_affected": result.DeletedCount}}, nil
}

func drainCursor(ctx context.Context, cursor *mongo.Cursor) ([]map[string]any, error) {
	var results []map[string]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongoexec: decode: %w", err)
		}
		results = append(results, doc)
	}
	return results, cursor.Err()
}
