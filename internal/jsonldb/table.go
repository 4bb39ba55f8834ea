package jsonldb

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	patcherrors "github.com/maruel/jsonlpatch/internal/errors"
)

// maxLineSize is the longest line Load accepts.
const maxLineSize = 16 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Line is one non-blank line of a JSONL file.
type Line struct {
	// No is the 1-based line number in the file.
	No int
	// Raw is the line content without its line terminator.
	Raw []byte
	// Record is the parsed object. It is nil when Err is set.
	Record *Record
	// Err is set when the line is not a JSON object.
	Err error
}

// Table is the in-memory image of a JSONL file.
type Table struct {
	path  string
	mode  fs.FileMode
	lines []*Line
}

// Load reads the JSONL file at path.
//
// A missing file returns an ErrFileAbsent error which also matches
// fs.ErrNotExist. Lines that are not JSON objects do not fail the load; they
// are returned with Line.Err set.
func Load(path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: the store path is chosen by the caller
	if err != nil {
		if os.IsNotExist(err) {
			return nil, patcherrors.FileAbsent(path)
		}
		return nil, patcherrors.ReadFailure(path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, patcherrors.ReadFailure(path, err)
	}
	if fi.IsDir() {
		return nil, patcherrors.ReadFailure(path, errors.New("is a directory"))
	}
	lines, err := readLines(f)
	if err != nil {
		return nil, patcherrors.ReadFailure(path, err)
	}
	return &Table{path: path, mode: fi.Mode().Perm(), lines: lines}, nil
}

func readLines(r io.Reader) ([]*Line, error) {
	var lines []*Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	no := 0
	for scanner.Scan() {
		no++
		raw := scanner.Bytes()
		if no == 1 {
			raw = bytes.TrimPrefix(raw, utf8BOM)
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		lines = append(lines, parseLine(no, bytes.Clone(raw)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", no+1, err)
	}
	return lines, nil
}

func parseLine(no int, raw []byte) *Line {
	l := &Line{No: no, Raw: raw}
	rec, err := ParseRecord(raw)
	if err != nil {
		l.Err = patcherrors.RecordParseFailure(no, err)
		return l
	}
	l.Record = rec
	return l
}

// Len returns the number of non-blank lines.
func (t *Table) Len() int {
	return len(t.lines)
}

// All returns an iterator over the lines in file order.
func (t *Table) All() iter.Seq[*Line] {
	return func(yield func(*Line) bool) {
		for _, l := range t.lines {
			if !yield(l) {
				return
			}
		}
	}
}

// Replace atomically rewrites the file with rows, one per line.
//
// Rows must not contain newlines. When the path is a symlink its target is
// rewritten and the link is kept. The file keeps its permission bits. On
// failure the original file is untouched and the temporary file is removed.
// The table is not reloaded; Load the file again to read the new content.
func (t *Table) Replace(rows [][]byte) error {
	for i, row := range rows {
		if bytes.IndexByte(row, '\n') >= 0 {
			return patcherrors.WriteFailure(t.path, fmt.Errorf("row %d contains a newline", i))
		}
	}
	target, err := filepath.EvalSymlinks(t.path)
	if err != nil {
		return patcherrors.WriteFailure(t.path, fmt.Errorf("failed to resolve path: %w", err))
	}
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return patcherrors.WriteFailure(t.path, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := f.Name()
	if err := writeRows(f, rows); err != nil {
		return patcherrors.WriteFailure(t.path, errors.Join(err, f.Close(), os.Remove(tmpPath)))
	}
	if err := f.Close(); err != nil {
		return patcherrors.WriteFailure(t.path, errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath)))
	}
	if err := os.Chmod(tmpPath, t.mode); err != nil {
		return patcherrors.WriteFailure(t.path, errors.Join(fmt.Errorf("failed to set permissions: %w", err), os.Remove(tmpPath)))
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return patcherrors.WriteFailure(t.path, errors.Join(fmt.Errorf("failed to rename temp file: %w", err), os.Remove(tmpPath)))
	}
	return nil
}

func writeRows(f *os.File, rows [][]byte) error {
	writer := bufio.NewWriter(f)
	for _, row := range rows {
		if _, err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	return nil
}
