package manifest

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	patcherrors "github.com/maruel/jsonlpatch/internal/errors"
	"github.com/maruel/jsonlpatch/internal/patcher"
)

const validManifest = `
version: 1
file: .beads/issues.jsonl
timestamp: "2025-11-22T19:05:00Z"
updates:
  issue-1:
    description: "Add floating search bar: Alt+Space."
    priority: 2
  issue-2:
    labels: [ui, search]
    meta:
      owner: me
      done: false
`

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m, err := Parse([]byte(validManifest))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if m.File != ".beads/issues.jsonl" || m.Timestamp != "2025-11-22T19:05:00Z" {
			t.Errorf("Parse() = %+v", m)
		}
		wantSet := patcher.Set{
			"issue-1": {"description": "Add floating search bar: Alt+Space.", "priority": 2},
			"issue-2": {
				"labels": []any{"ui", "search"},
				"meta":   map[string]any{"owner": "me", "done": false},
			},
		}
		if diff := cmp.Diff(wantSet, m.Set()); diff != "" {
			t.Errorf("Set() mismatch (-want +got):\n%s", diff)
		}
		opts, err := m.Options()
		if err != nil {
			t.Fatalf("Options failed: %v", err)
		}
		wantOpts := patcher.Options{Timestamp: "2025-11-22T19:05:00Z"}
		if diff := cmp.Diff(wantOpts, opts); diff != "" {
			t.Errorf("Options() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unquoted timestamp stays verbatim", func(t *testing.T) {
		m, err := Parse([]byte("version: 1\nfile: a.jsonl\ntimestamp: 2025-11-22T19:05:00Z\n"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if m.Timestamp != "2025-11-22T19:05:00Z" {
			t.Errorf("Timestamp = %q, want verbatim", m.Timestamp)
		}
	})

	t.Run("options", func(t *testing.T) {
		tests := []struct {
			name string
			doc  string
			want patcher.Options
		}{
			{
				"all set",
				"version: 1\nfile: a\ntimestamp: T\nid_field: key\ntimestamp_field: modified\nmalformed: preserve\nmerge: merge-patch\n",
				patcher.Options{IDField: "key", TimestampField: "modified", Timestamp: "T", Malformed: patcher.PreserveMalformed, Merge: patcher.MergePatch},
			},
			{
				"explicit defaults",
				"version: 1\nfile: a\ntimestamp: T\nmalformed: drop\nmerge: shallow\n",
				patcher.Options{Timestamp: "T"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m, err := Parse([]byte(tt.doc))
				if err != nil {
					t.Fatalf("Parse failed: %v", err)
				}
				got, err := m.Options()
				if err != nil {
					t.Fatalf("Options failed: %v", err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("Options() mismatch (-want +got):\n%s", diff)
				}
			})
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			doc  string
		}{
			{"not yaml", "version: [1\n"},
			{"unknown field", "version: 1\nfile: a\ntimestamp: T\nextra: 1\n"},
			{"bad version", "version: 2\nfile: a\ntimestamp: T\n"},
			{"no file", "version: 1\ntimestamp: T\n"},
			{"no timestamp", "version: 1\nfile: a\n"},
			{"bad policy", "version: 1\nfile: a\ntimestamp: T\nmalformed: keep\n"},
			{"bad merge", "version: 1\nfile: a\ntimestamp: T\nmerge: deep\n"},
			{"non-string keys", "version: 1\nfile: a\ntimestamp: T\nupdates:\n  a:\n    m:\n      1: x\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Parse([]byte(tt.doc))
				if got := patcherrors.CodeOf(err); got != patcherrors.ErrInvalidManifest {
					t.Errorf("CodeOf(Parse()) = %q, want %q (err: %v)", got, patcherrors.ErrInvalidManifest, err)
				}
			})
		}
	})
}
