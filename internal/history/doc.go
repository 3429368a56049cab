// Package history persists the conversion history log.
//
// The log is an append-ordered collection of Entry values, most recent
// first. Two backends implement Store: JSONStore keeps the collection as a
// single indented JSON array (the default, readable by hand), and
// SQLiteStore keeps it in a SQLite table. Only the batch worker appends, but
// the JSON backend still takes a file lock so a CLI "history clear" in
// another process cannot interleave with a write.
package history
