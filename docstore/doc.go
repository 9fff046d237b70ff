// Package docstore is a consistency-checked access layer over a document
// container that offers per-item conditional writes but no cross-item
// transactions.
//
// A Table describes a logical table: its name, the primary-key field, and
// how raw records are validated and converted to a typed shape. A Collection
// binds a Table to a Backend and implements get, list, save and delete:
//
//	settings := docstore.NewTable[Setting]("settings", "name")
//	coll := docstore.NewCollection(backend, settings, log)
//	saved, err := coll.Save(ctx, rec, docstore.UpdateOnly)
//
// Save reads the current snapshot, checks the requested Condition, and
// writes with the snapshot's revision tag as an If-Match precondition, so a
// concurrent writer that got there first makes the write fail with a
// CONFLICT error instead of being silently overwritten. Delete compares every
// field of the caller's copy against the stored snapshot before removing it.
// Neither operation retries.
//
// Backends live in sub-packages: memstore (in process), sqlstore (gorm over
// SQLite) and redisstore (go-redis).
package docstore
