package translator

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sqlmongo/translator/invocation"
)

func mustTranslate(t *testing.T, sql string) *invocation.Invocation {
	t.Helper()
	inv, err := Translate(sql, "classicmodels", invocation.DefaultOptions())
	if err != nil {
		t.Fatalf("Translate(%q) failed: %v", sql, err)
	}
	return inv
}

// Scenario 1 (spec §8): a plain filtered, sorted, limited SELECT lowers to
// a native find() invocation with the default collation attached.
func TestScenarioSimpleFind(t *testing.T) {
	inv := mustTranslate(t, "SELECT customerName FROM customers WHERE customerNumber > 100 ORDER BY customerName ASC LIMIT 10;")
	if inv.Op != invocation.OpFind {
		t.Fatalf("op = %v, want find", inv.Op)
	}
	if inv.Collection != "customers" {
		t.Fatalf("collection = %q", inv.Collection)
	}
	wantFilter := bson.M{"customerNumber": bson.M{"$gt": int64(100)}}
	if !bsonEqual(inv.Filter, wantFilter) {
		t.Errorf("filter = %#v, want %#v", inv.Filter, wantFilter)
	}
	wantProjection := bson.M{"_id": 0, "customerName": 1}
	if !bsonEqual(inv.Projection, wantProjection) {
		t.Errorf("projection = %#v, want %#v", inv.Projection, wantProjection)
	}
	wantSort := bson.M{"customerName": 1}
	if !bsonEqual(inv.Sort, wantSort) {
		t.Errorf("sort = %#v, want %#v", inv.Sort, wantSort)
	}
	if inv.Limit == nil || *inv.Limit != 10 {
		t.Errorf("limit = %v, want 10", inv.Limit)
	}
	if inv.Collation == nil || *inv.Collation != invocation.DefaultCollation() {
		t.Errorf("collation = %#v, want default", inv.Collation)
	}
}

// Scenario 2 (spec §8): GROUP BY/HAVING/ORDER BY lowers to an aggregate
// pipeline that groups first, filters groups with $match, and sorts last.
func TestScenarioGroupByHaving(t *testing.T) {
	inv := mustTranslate(t, "SELECT country, COUNT(*) AS n FROM customers GROUP BY country HAVING COUNT(*) > 5 ORDER BY n DESC;")
	if inv.Op != invocation.OpAggregate {
		t.Fatalf("op = %v, want aggregate", inv.Op)
	}
	stageNames := stageKeys(inv.Pipeline)
	if len(stageNames) == 0 || stageNames[0] != "$group" {
		t.Fatalf("pipeline must start with $group, got %v", stageNames)
	}
	if stageNames[len(stageNames)-1] != "$sort" {
		t.Fatalf("pipeline must end with $sort, got %v", stageNames)
	}
	group, ok := inv.Pipeline[0][0].Value.(bson.M)
	if !ok {
		t.Fatalf("$group stage value has unexpected type %T", inv.Pipeline[0][0].Value)
	}
	if !bsonEqual(group["_id"], "$country") {
		t.Errorf("single-column GROUP BY _id = %#v, want bare \"$country\"", group["_id"])
	}
	if countStage(stageNames, "$match") == 0 {
		t.Fatalf("HAVING must lower to a $match stage, got %v", stageNames)
	}
	var lastProject bson.D
	for _, s := range inv.Pipeline {
		if d := projDocOf(s); d != nil {
			lastProject = d
		}
	}
	if lastProject == nil {
		t.Fatalf("expected at least one $project stage, got %v", stageNames)
	}
	keys := map[string]bool{}
	for _, e := range lastProject {
		keys[e.Key] = true
	}
	if !keys["country"] || !keys["n"] {
		t.Errorf("final projection must carry country and n, got %#v", lastProject)
	}
}

// Scenario 3 (spec §8): LEFT JOIN lowers to $lookup/$unwind with
// preserveNullAndEmptyArrays true, followed by a $project.
func TestScenarioLeftJoin(t *testing.T) {
	inv := mustTranslate(t, "SELECT c.customerName, o.orderDate FROM customers c LEFT JOIN orders o ON c.customerNumber = o.customerNumber;")
	if inv.Op != invocation.OpAggregate {
		t.Fatalf("op = %v, want aggregate", inv.Op)
	}
	stageNames := stageKeys(inv.Pipeline)
	if len(stageNames) < 2 || stageNames[0] != "$lookup" || stageNames[1] != "$unwind" {
		t.Fatalf("expected $lookup then $unwind, got %v", stageNames)
	}
	unwindDoc := inv.Pipeline[1].Map()["$unwind"].(bson.M)
	if preserve, _ := unwindDoc["preserveNullAndEmptyArrays"].(bool); !preserve {
		t.Errorf("LEFT JOIN unwind must preserve unmatched rows, got %#v", unwindDoc)
	}
}

// Scenario 4 (spec §8): IN (subquery) lowers to $lookup + $match{$expr:$in}.
func TestScenarioInSubquery(t *testing.T) {
	inv := mustTranslate(t, "SELECT customerName FROM customers WHERE customerNumber IN (SELECT customerNumber FROM orders);")
	if inv.Op != invocation.OpAggregate {
		t.Fatalf("op = %v, want aggregate", inv.Op)
	}
	stageNames := stageKeys(inv.Pipeline)
	lookups := countStage(stageNames, "$lookup")
	if lookups != 1 {
		t.Fatalf("expected exactly one $lookup for one IN-subquery, got %d in %v", lookups, stageNames)
	}
	found := false
	for _, s := range inv.Pipeline {
		if m, ok := s.Map()["$match"]; ok {
			if em, ok := m.(bson.M)["$expr"].(bson.M); ok {
				if _, ok := em["$in"]; ok {
					found = true
				}
			}
		}
	}
	if !found {
		t.Errorf("expected a $match{$expr:{$in:...}} stage, pipeline = %#v", inv.Pipeline)
	}
}

// Scenario 5 (spec §8): IF(...) in a projection lowers to $cond.
func TestScenarioIfProjection(t *testing.T) {
	inv := mustTranslate(t, "SELECT IF(creditLimit > 50000, 'High', 'Low') AS tier FROM customers;")
	if inv.Op != invocation.OpAggregate {
		t.Fatalf("op = %v, want aggregate", inv.Op)
	}
	last := inv.Pipeline[len(inv.Pipeline)-1]
	proj := projDocOf(last)
	if proj == nil {
		t.Fatalf("last stage is not $project: %#v", last)
	}
	var tierValue any
	found := false
	for _, e := range proj {
		if e.Key == "tier" {
			tierValue, found = e.Value, true
		}
	}
	if !found {
		t.Fatalf("tier projection missing: %#v", proj)
	}
	tier, ok := tierValue.(bson.M)
	if !ok {
		t.Fatalf("tier projection = %#v", tierValue)
	}
	if _, ok := tier["$cond"]; !ok {
		t.Errorf("IF() must lower to $cond, got %#v", tier)
	}
}

// Scenario 6 (spec §8): a simple UPDATE lowers to updateMany with $set.
func TestScenarioUpdate(t *testing.T) {
	inv := mustTranslate(t, "UPDATE customers SET contactFirstName = 'Jane' WHERE customerNumber = 500;")
	if inv.Op != invocation.OpUpdateMany {
		t.Fatalf("op = %v, want updateMany", inv.Op)
	}
	wantFilter := bson.M{"customerNumber": int64(500)}
	if !bsonEqual(inv.Filter, wantFilter) {
		t.Errorf("filter = %#v, want %#v", inv.Filter, wantFilter)
	}
	set, ok := inv.Update.(bson.M)["$set"].(bson.M)
	if !ok || set["contactFirstName"] != "Jane" {
		t.Errorf("update = %#v", inv.Update)
	}
}

func TestDeleteLowersToDeleteMany(t *testing.T) {
	inv := mustTranslate(t, "DELETE FROM customers WHERE customerNumber = 500;")
	if inv.Op != invocation.OpDeleteMany {
		t.Fatalf("op = %v, want deleteMany", inv.Op)
	}
	wantFilter := bson.M{"customerNumber": int64(500)}
	if !bsonEqual(inv.Filter, wantFilter) {
		t.Errorf("filter = %#v, want %#v", inv.Filter, wantFilter)
	}
}

func TestInsertSingleRowLowersToInsertOne(t *testing.T) {
	inv := mustTranslate(t, "INSERT INTO customers (customerName, creditLimit) VALUES ('Ann', 1000);")
	if inv.Op != invocation.OpInsertOne {
		t.Fatalf("op = %v, want insertOne", inv.Op)
	}
	if inv.Document["customerName"] != "Ann" {
		t.Errorf("document = %#v", inv.Document)
	}
}

func TestInsertMultiRowLowersToInsertMany(t *testing.T) {
	inv := mustTranslate(t, "INSERT INTO customers (customerName) VALUES ('Ann'), ('Bo');")
	if inv.Op != invocation.OpInsertMany {
		t.Fatalf("op = %v, want insertMany", inv.Op)
	}
	if len(inv.Documents) != 2 {
		t.Fatalf("documents = %#v", inv.Documents)
	}
}

// Determinism: translating the same statement twice must yield identical
// invocations (spec §8's "translate is a pure function").
func TestDeterminism(t *testing.T) {
	sql := "SELECT country, COUNT(*) AS n FROM customers GROUP BY country HAVING COUNT(*) > 5 ORDER BY n DESC;"
	a := mustTranslate(t, sql)
	b := mustTranslate(t, sql)
	aBytes, err := bson.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	bBytes, err := bson.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(aBytes) != string(bBytes) {
		t.Errorf("translate is not deterministic:\n%x\nvs\n%x", aBytes, bBytes)
	}
}

// Case-insensitivity: keyword case must not affect the emitted invocation.
func TestCaseInsensitiveKeywords(t *testing.T) {
	upper := mustTranslate(t, "SELECT customerName FROM customers WHERE customerNumber > 100")
	lower := mustTranslate(t, "select customerName from customers where customerNumber > 100")
	if !bsonEqual(upper.Filter, lower.Filter) {
		t.Errorf("case-insensitive filter mismatch: %#v vs %#v", upper.Filter, lower.Filter)
	}
}

// Backtick transparency: escaping identifiers must not change the result.
func TestBacktickTransparency(t *testing.T) {
	plain := mustTranslate(t, "SELECT customerName FROM customers")
	quoted := mustTranslate(t, "SELECT `customerName` FROM `customers`")
	if plain.Collection != quoted.Collection {
		t.Errorf("collection mismatch: %q vs %q", plain.Collection, quoted.Collection)
	}
	if !bsonEqual(plain.Projection, quoted.Projection) {
		t.Errorf("projection mismatch: %#v vs %#v", plain.Projection, quoted.Projection)
	}
}

// LIMIT stability: LIMIT with no ORDER BY gets an implicit $sort on _id
// immediately before $limit.
func TestImplicitOrderShimOnLimit(t *testing.T) {
	inv := mustTranslate(t, "SELECT customerName FROM customers LIMIT 5")
	wantSort := bson.M{"_id": 1}
	if !bsonEqual(inv.Sort, wantSort) {
		t.Errorf("implicit sort = %#v, want %#v", inv.Sort, wantSort)
	}
	if inv.Limit == nil || *inv.Limit != 5 {
		t.Errorf("limit = %v", inv.Limit)
	}
}

func TestImplicitOrderShimSuppressedByOption(t *testing.T) {
	opts := invocation.DefaultOptions()
	opts.ImplicitOrderOnLimit = false
	inv, err := Translate("SELECT customerName FROM customers LIMIT 5", "db", opts)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Sort != nil {
		t.Errorf("sort should be absent when the shim is disabled, got %#v", inv.Sort)
	}
}

// GROUP BY discipline: a non-aggregate projection not present in GROUP BY
// is a semantic error, not a silently wrong pipeline.
func TestGroupByMismatchIsRejected(t *testing.T) {
	_, err := Translate("SELECT customerName, COUNT(*) FROM customers GROUP BY country", "db", invocation.DefaultOptions())
	if err == nil {
		t.Fatal("expected an error for a non-aggregate projection missing from GROUP BY")
	}
}

// LIKE round-trip: a literal-only pattern lowers to a fully-anchored,
// fully-escaped regex.
func TestLikeLiteralPatternIsAnchoredAndEscaped(t *testing.T) {
	inv := mustTranslate(t, `SELECT customerName FROM customers WHERE customerName LIKE 'a.b'`)
	filter, ok := inv.Filter["customerName"].(bson.M)
	if !ok {
		t.Fatalf("filter = %#v", inv.Filter)
	}
	regex, _ := filter["$regex"].(string)
	if regex != `^a\.b$` {
		t.Errorf("regex = %q, want ^a\\.b$", regex)
	}
}

func TestOrderByPositionalReference(t *testing.T) {
	inv := mustTranslate(t, "SELECT country, city FROM customers ORDER BY 2")
	wantSort := bson.M{"city": 1}
	if !bsonEqual(inv.Sort, wantSort) {
		t.Errorf("positional ORDER BY = %#v, want %#v", inv.Sort, wantSort)
	}
}

func TestUnknownFunctionErrors(t *testing.T) {
	_, err := Translate("SELECT NOT_A_FUNCTION(a) FROM t", "db", invocation.DefaultOptions())
	if err == nil {
		t.Fatal("expected UnknownFunction error")
	}
}

func TestTranslateManyAbortsOnFirstError(t *testing.T) {
	_, err := TranslateMany("SELECT a FROM t; SELECT NOT_A_FUNCTION(a) FROM t; SELECT b FROM u;", "db", invocation.DefaultOptions())
	if err == nil {
		t.Fatal("expected the batch to abort on the second statement's error")
	}
}

// Window functions recognised under an OVER(...) clause lower to a
// $setWindowFields stage placed before GROUP BY, with PARTITION BY/ORDER BY
// folded into partitionBy/sortBy and the call rewritten to reference the
// stage's synthetic output field.
func TestWindowRowNumberOverPartition(t *testing.T) {
	inv := mustTranslate(t, "SELECT customerName, ROW_NUMBER() OVER (PARTITION BY salesRepEmployeeNumber ORDER BY creditLimit DESC) AS rn FROM customers;")
	if inv.Op != invocation.OpAggregate {
		t.Fatalf("op = %v, want aggregate", inv.Op)
	}
	stageNames := stageKeys(inv.Pipeline)
	if len(stageNames) == 0 || stageNames[0] != "$setWindowFields" {
		t.Fatalf("pipeline must start with $setWindowFields, got %v", stageNames)
	}
	swf, ok := inv.Pipeline[0][0].Value.(bson.M)
	if !ok {
		t.Fatalf("$setWindowFields stage value has unexpected type %T", inv.Pipeline[0][0].Value)
	}
	if !bsonEqual(swf["partitionBy"], "$salesRepEmployeeNumber") {
		t.Errorf("partitionBy = %#v, want \"$salesRepEmployeeNumber\"", swf["partitionBy"])
	}
	if !bsonEqual(swf["sortBy"], bson.M{"creditLimit": -1}) {
		t.Errorf("sortBy = %#v, want {creditLimit: -1}", swf["sortBy"])
	}
	output, ok := swf["output"].(bson.M)
	if !ok || len(output) != 1 {
		t.Fatalf("output = %#v, want exactly one synthetic field", swf["output"])
	}
	for _, v := range output {
		if !bsonEqual(v, bson.M{"$documentNumber": bson.M{}}) {
			t.Errorf("ROW_NUMBER output = %#v, want $documentNumber", v)
		}
	}
	lastProject := projDocOf(inv.Pipeline[len(inv.Pipeline)-1])
	if lastProject == nil {
		t.Fatalf("expected a final $project stage, got %v", stageNames)
	}
	keys := map[string]bool{}
	for _, e := range lastProject {
		keys[e.Key] = true
	}
	if !keys["customerName"] || !keys["rn"] {
		t.Errorf("final projection must carry customerName and rn, got %#v", lastProject)
	}
}

// LAG/LEAD without an explicit offset default to one row, and lower to
// $shift inside the same $setWindowFields output.
func TestWindowLagDefaultOffset(t *testing.T) {
	inv := mustTranslate(t, "SELECT orderNumber, LAG(status) OVER (ORDER BY orderDate) AS prevStatus FROM orders;")
	swf, ok := inv.Pipeline[0][0].Value.(bson.M)
	if !ok {
		t.Fatalf("$setWindowFields stage value has unexpected type %T", inv.Pipeline[0][0].Value)
	}
	if _, hasPartition := swf["partitionBy"]; hasPartition {
		t.Errorf("no PARTITION BY was given, partitionBy should be absent, got %#v", swf["partitionBy"])
	}
	output, ok := swf["output"].(bson.M)
	if !ok || len(output) != 1 {
		t.Fatalf("output = %#v, want exactly one synthetic field", swf["output"])
	}
	for _, v := range output {
		if !bsonEqual(v, bson.M{"$shift": bson.M{"output": "$status", "by": int64(-1)}}) {
			t.Errorf("LAG output = %#v, want $shift by the constant -1", v)
		}
	}
}

// GROUP_CONCAT's SEPARATOR clause lowers to the $reduce accumulator's join
// string, and its ORDER BY clause reorders the pushed values with
// $sortArray before the reduce runs.
func TestGroupConcatSeparatorAndOrderBy(t *testing.T) {
	inv := mustTranslate(t, "SELECT salesRepEmployeeNumber, GROUP_CONCAT(customerName ORDER BY customerName ASC SEPARATOR '; ') AS names FROM customers GROUP BY salesRepEmployeeNumber;")
	if inv.Op != invocation.OpAggregate {
		t.Fatalf("op = %v, want aggregate", inv.Op)
	}
	group, ok := inv.Pipeline[0][0].Value.(bson.M)
	if !ok {
		t.Fatalf("$group stage value has unexpected type %T", inv.Pipeline[0][0].Value)
	}
	var accum bson.M
	for k, v := range group {
		if k != "_id" {
			accum, _ = v.(bson.M)
		}
	}
	if accum == nil {
		t.Fatalf("expected a single non-_id accumulator field, got %#v", group)
	}
	reduce, ok := accum["$reduce"].(bson.M)
	if !ok {
		t.Fatalf("GROUP_CONCAT ORDER BY must lower to a $reduce over a $sortArray, got %#v", accum)
	}
	sortArray, ok := reduce["input"].(bson.M)["$sortArray"].(bson.M)
	if !ok {
		t.Fatalf("$reduce input must be a $sortArray, got %#v", reduce["input"])
	}
	if !bsonEqual(sortArray["sortBy"], bson.M{"k": 1}) {
		t.Errorf("sortBy = %#v, want ascending on k", sortArray["sortBy"])
	}
}

// GROUP_CONCAT without ORDER BY still honours an explicit SEPARATOR, and
// does not throw ArityMismatch for the two-argument call the grammar
// produces (value + separator).
func TestGroupConcatSeparatorWithoutOrderBy(t *testing.T) {
	inv := mustTranslate(t, "SELECT salesRepEmployeeNumber, GROUP_CONCAT(customerName SEPARATOR '|') AS names FROM customers GROUP BY salesRepEmployeeNumber;")
	group, ok := inv.Pipeline[0][0].Value.(bson.M)
	if !ok {
		t.Fatalf("$group stage value has unexpected type %T", inv.Pipeline[0][0].Value)
	}
	var accum bson.M
	for k, v := range group {
		if k != "_id" {
			accum, _ = v.(bson.M)
		}
	}
	reduce, ok := accum["$reduce"].(bson.M)
	if !ok {
		t.Fatalf("GROUP_CONCAT must lower to a $reduce, got %#v", accum)
	}
	cond, ok := reduce["in"].(bson.M)["$cond"].(bson.A)
	if !ok || len(cond) != 3 {
		t.Fatalf("$reduce.in must be a three-armed $cond, got %#v", reduce["in"])
	}
	concatExpr, ok := cond[2].(bson.M)["$concat"].(bson.A)
	if !ok || len(concatExpr) != 3 || concatExpr[1] != "|" {
		t.Errorf("$concat separator = %#v, want \"|\" in the middle slot", concatExpr)
	}
}

// -- helpers --

func bsonEqual(a, b any) bool {
	ab, err1 := bson.Marshal(bson.M{"v": a})
	bb, err2 := bson.Marshal(bson.M{"v": b})
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ab) == string(bb)
}

// projDocOf returns the $project stage's bson.D value, or nil if stage is
// not a $project stage or its value is not a bson.D (the final projection
// is built as bson.D via projStageToD; the flattening $project after a
// $group is a bson.M and yields nil here).
func projDocOf(stage bson.D) bson.D {
	for _, e := range stage {
		if e.Key == "$project" {
			if d, ok := e.Value.(bson.D); ok {
				return d
			}
		}
	}
	return nil
}

func stageKeys(pipeline []bson.D) []string {
	out := make([]string, len(pipeline))
	for i, stage := range pipeline {
		if len(stage) > 0 {
			out[i] = stage[0].Key
		}
	}
	return out
}

func countStage(stages []string, name string) int {
	n := 0
	for _, s := range stages {
		if s == name {
			n++
		}
	}
	return n
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
