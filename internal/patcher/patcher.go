// Package patcher applies a fixed set of field updates to the records of a
// JSONL store, keyed by record identifier.
//
// A run loads the whole file, merges the matching updates in memory, stamps
// every patched record with a fixed timestamp and atomically rewrites the
// file in the original order. Records that are not patched are written back
// unchanged.
package patcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	patcherrors "github.com/maruel/jsonlpatch/internal/errors"
	"github.com/maruel/jsonlpatch/internal/jsonldb"
)

const (
	// DefaultIDField is the record field matched against the patch set keys.
	DefaultIDField = "id"
	// DefaultTimestampField is the record field stamped on patched records.
	DefaultTimestampField = "updated_at"
)

// MalformedPolicy selects what happens to lines that are not JSON objects.
type MalformedPolicy int

const (
	// DropMalformed omits malformed lines from the rewritten file.
	DropMalformed MalformedPolicy = iota
	// PreserveMalformed writes malformed lines back verbatim at their position.
	PreserveMalformed
)

func (m MalformedPolicy) String() string {
	switch m {
	case DropMalformed:
		return "drop"
	case PreserveMalformed:
		return "preserve"
	default:
		return fmt.Sprintf("MalformedPolicy(%d)", int(m))
	}
}

// Fields is the partial record merged into a matching record.
type Fields map[string]any

// Set maps record identifiers to the fields merged into them.
type Set map[string]Fields

// Options configures a Patcher.
type Options struct {
	// IDField is the field holding the record identifier. Defaults to "id".
	IDField string
	// TimestampField is set on every patched record. Defaults to "updated_at".
	TimestampField string
	// Timestamp is written verbatim into TimestampField. Required.
	Timestamp string
	// Malformed selects the fate of lines that are not JSON objects.
	Malformed MalformedPolicy
	// Merge selects how fields are merged into a record.
	Merge MergeStrategy
}

// MalformedLine describes a line that was not a JSON object.
type MalformedLine struct {
	No  int
	Err error
}

// Result summarizes a run.
type Result struct {
	// Absent is true when the store file did not exist. Nothing was written.
	Absent bool
	// Records is the number of records written.
	Records int
	// Patched lists the identifiers of patched records in file order.
	Patched []string
	// Unmatched lists the patch set identifiers not found in the file, sorted.
	Unmatched []string
	// Malformed lists the lines that were not JSON objects.
	Malformed []MalformedLine
	// Preserved is true when malformed lines were written back verbatim.
	Preserved bool
}

// Patcher applies patch sets to JSONL stores.
type Patcher struct {
	opts Options
}

// New validates opts and returns a Patcher.
func New(opts Options) (*Patcher, error) {
	if opts.IDField == "" {
		opts.IDField = DefaultIDField
	}
	if opts.TimestampField == "" {
		opts.TimestampField = DefaultTimestampField
	}
	if opts.Timestamp == "" {
		return nil, patcherrors.InvalidPatch("timestamp is required")
	}
	if opts.IDField == opts.TimestampField {
		return nil, patcherrors.InvalidPatch(fmt.Sprintf("id field and timestamp field are both %q", opts.IDField))
	}
	if opts.Malformed != DropMalformed && opts.Malformed != PreserveMalformed {
		return nil, patcherrors.InvalidPatch(fmt.Sprintf("unknown malformed policy %v", opts.Malformed))
	}
	if _, ok := mergers[opts.Merge]; !ok {
		return nil, patcherrors.InvalidPatch(fmt.Sprintf("unknown merge strategy %v", opts.Merge))
	}
	return &Patcher{opts: opts}, nil
}

// Options returns the effective options, defaults included.
func (p *Patcher) Options() Options {
	return p.opts
}

// Apply patches the JSONL file at path with set.
//
// A missing file is not an error: the returned Result has Absent set and no
// file is created. Read and write failures are returned as errors and leave
// the file unmodified.
func (p *Patcher) Apply(ctx context.Context, path string, set Set) (*Result, error) {
	updates, err := compile(set)
	if err != nil {
		return nil, err
	}
	tbl, err := jsonldb.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.InfoContext(ctx, "Store not found, nothing to patch", "path", path)
			return &Result{Absent: true}, nil
		}
		return nil, err
	}

	merge := mergers[p.opts.Merge]
	res := &Result{}
	seen := make(map[string]bool, len(updates))
	rows := make([][]byte, 0, tbl.Len())
	for l := range tbl.All() {
		if l.Err != nil {
			res.Malformed = append(res.Malformed, MalformedLine{No: l.No, Err: l.Err})
			if p.opts.Malformed == PreserveMalformed {
				slog.WarnContext(ctx, "Preserving malformed line", "path", path, "line", l.No, "err", l.Err)
				rows = append(rows, l.Raw)
				res.Preserved = true
			} else {
				slog.WarnContext(ctx, "Dropping malformed line", "path", path, "line", l.No, "err", l.Err)
			}
			continue
		}
		rec := l.Record
		if id, ok := rec.String(p.opts.IDField); ok {
			if u, ok := updates[id]; ok {
				if rec, err = merge(rec, u); err != nil {
					return nil, fmt.Errorf("failed to patch record %q on line %d: %w", id, l.No, err)
				}
				if err := rec.Set(p.opts.TimestampField, p.opts.Timestamp); err != nil {
					return nil, err
				}
				seen[id] = true
				res.Patched = append(res.Patched, id)
				slog.DebugContext(ctx, "Patched record", "id", id, "line", l.No, "fields", u.Len())
			}
		}
		data, err := rec.MarshalJSON()
		if err != nil {
			return nil, patcherrors.WriteFailure(path, fmt.Errorf("failed to encode line %d: %w", l.No, err))
		}
		rows = append(rows, data)
		res.Records++
	}
	for id := range updates {
		if !seen[id] {
			res.Unmatched = append(res.Unmatched, id)
		}
	}
	slices.Sort(res.Unmatched)

	if err := tbl.Replace(rows); err != nil {
		return nil, err
	}
	return res, nil
}

// compile encodes every update once, before the store is touched.
func compile(set Set) (map[string]*jsonldb.Record, error) {
	updates := make(map[string]*jsonldb.Record, len(set))
	for id, fields := range set {
		if id == "" {
			return nil, patcherrors.InvalidPatch("empty record id in patch set")
		}
		u := jsonldb.NewRecord()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := u.Set(k, fields[k]); err != nil {
				return nil, patcherrors.InvalidPatch(fmt.Sprintf("record %q", id)).Wrap(err)
			}
		}
		updates[id] = u
	}
	return updates, nil
}
