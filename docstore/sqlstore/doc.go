// Package sqlstore is a durable docstore backend on gorm and SQLite.
//
// Every table lives in one "documents" SQL table keyed by (container, id).
// The JSON document is kept in the body column and its revision tag,
// internal id and write time are mirrored into columns so that If-Match
// writes become a conditional UPDATE ... WHERE etag = ?. Equality filters
// are pushed down as json_extract(body, '$.field') comparisons.
//
// The schema is created by golang-migrate from embedded SQL files when the
// store starts.
//
//	store := sqlstore.New(sqlstore.Config{DSN: "file:scalestore.db"}, log)
//	if err := store.Start(ctx); err != nil { ... }
//	defer store.Stop(ctx)
//	coll := docstore.NewCollection(store, apicache.Table, log)
package sqlstore
