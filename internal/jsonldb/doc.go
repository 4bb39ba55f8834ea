// Package jsonldb reads and rewrites JSONL (JSON Lines) record stores.
//
// # Overview
//
// A [Table] is the in-memory image of one JSONL file: every non-blank line is
// kept in file order as a [Line], parsed into a [Record] when it holds a JSON
// object. Lines that do not parse are kept too, with the parse error attached,
// so callers decide whether to drop or preserve them.
//
// # Records
//
// [Record] keeps the key order of the source object and stores values as
// compacted JSON text. Untouched fields are written back exactly as read, and
// new fields are appended after existing ones.
//
// # Rewrites
//
// [Table.Replace] writes to a temporary file next to the target, syncs it and
// renames it into place. A failed rewrite leaves the original file untouched
// and removes the temporary file.
//
// # File Format
//
// UTF-8 text, one JSON object per line, each line newline-terminated. Blank
// lines are ignored on load and never written.
package jsonldb
