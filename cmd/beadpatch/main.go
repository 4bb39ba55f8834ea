// Package main is the entry point for beadpatch.
//
// beadpatch applies the patch manifest compiled into the binary
// (patches.yaml) to a beads issue store, .beads/issues.jsonl relative to the
// working directory. It takes no arguments. A missing store is not an error.
// Set LOG_LEVEL to debug, info, warn or error to change verbosity.
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	patcherrors "github.com/maruel/jsonlpatch/internal/errors"
	"github.com/maruel/jsonlpatch/internal/manifest"
	"github.com/maruel/jsonlpatch/internal/patcher"
)

//go:embed patches.yaml
var patchesYAML []byte

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "beadpatch: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	if len(os.Args) > 1 {
		return fmt.Errorf("unknown arguments: %v", os.Args[1:])
	}
	ll := &slog.LevelVar{}
	if err := setLevel(ll, os.Getenv("LOG_LEVEL")); err != nil {
		return err
	}
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	slog.SetDefault(newLogger(colorable.NewColorable(os.Stderr), !isatty.IsTerminal(os.Stderr.Fd()), underSystemd, ll))

	ctx := context.Background()
	version, goVersion, revision, dirty := getBuildInfo()
	slog.DebugContext(ctx, "beadpatch", "version", version, "go", goVersion, "revision", revision, "dirty", dirty)

	m, err := manifest.Parse(patchesYAML)
	if err != nil {
		return err
	}
	return run(ctx, m)
}

// run applies m once and logs the outcome.
func run(ctx context.Context, m *manifest.Manifest) error {
	opts, err := m.Options()
	if err != nil {
		return err
	}
	p, err := patcher.New(opts)
	if err != nil {
		return err
	}
	res, err := p.Apply(ctx, m.File, m.Set())
	if err != nil {
		var perr *patcherrors.Error
		if errors.As(err, &perr) {
			slog.ErrorContext(ctx, "Patch failed", "code", perr.Code(), "details", perr.Details())
		}
		return err
	}
	if res.Absent {
		return nil
	}
	for _, id := range res.Unmatched {
		slog.WarnContext(ctx, "No record for update", "id", id)
	}
	slog.InfoContext(ctx, "Patched store",
		"path", m.File,
		"records", res.Records,
		"patched", len(res.Patched),
		"unmatched", len(res.Unmatched),
		"malformed", len(res.Malformed),
		"idField", p.Options().IDField,
		"merge", p.Options().Merge.String(),
		"malformedPolicy", p.Options().Malformed.String(),
		"preserved", res.Preserved)
	return nil
}

func setLevel(ll *slog.LevelVar, level string) error {
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "", "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", level)
	}
	return nil
}

func newLogger(w io.Writer, noColor, noTime bool, level slog.Leveler) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if noTime && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
