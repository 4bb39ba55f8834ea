package patcher

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/maruel/jsonlpatch/internal/jsonldb"
)

// MergeStrategy selects how an update is merged into a record.
type MergeStrategy int

const (
	// MergeShallow replaces top-level fields. Existing fields keep their
	// position, new fields are appended in key order.
	MergeShallow MergeStrategy = iota
	// MergePatch applies the update as an RFC 7386 JSON merge patch: nested
	// objects are merged recursively and null removes a field. The merged
	// record's keys end up in lexical order and its strings are written
	// without HTML escaping.
	MergePatch
)

func (m MergeStrategy) String() string {
	switch m {
	case MergeShallow:
		return "shallow"
	case MergePatch:
		return "merge-patch"
	default:
		return fmt.Sprintf("MergeStrategy(%d)", int(m))
	}
}

type mergeFunc func(rec, update *jsonldb.Record) (*jsonldb.Record, error)

var mergers = map[MergeStrategy]mergeFunc{
	MergeShallow: mergeShallow,
	MergePatch:   mergePatch,
}

func mergeShallow(rec, update *jsonldb.Record) (*jsonldb.Record, error) {
	rec.Update(update)
	return rec, nil
}

func mergePatch(rec, update *jsonldb.Record) (*jsonldb.Record, error) {
	doc, err := rec.MarshalJSON()
	if err != nil {
		return nil, err
	}
	patch, err := update.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("merge patch failed: %w", err)
	}
	merged, err := jsonldb.ParseRecord(out)
	if err != nil {
		return nil, err
	}
	// MergePatch HTML-escapes the whole document; write every value back
	// unescaped.
	for _, k := range merged.Keys() {
		raw, _ := merged.Get(k)
		if err := merged.SetRaw(k, raw); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
